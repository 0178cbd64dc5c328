package handle

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ledgernode/config"
	"ledgernode/core/dispatch"
	"ledgernode/core/hooks"
	"ledgernode/core/prehandle"
	"ledgernode/core/records"
	"ledgernode/core/signature"
	"ledgernode/core/state"
	"ledgernode/core/types"
	"ledgernode/crypto"
	"ledgernode/native/accounts"
	"ledgernode/native/fees"
	"ledgernode/native/files"
	"ledgernode/native/freeze"
	"ledgernode/storage"
	"ledgernode/storage/trie"
)

const (
	payerID   = types.AccountID(1001)
	otherID   = types.AccountID(1002)
	fundingID = types.AccountID(98)
	node0Acct = types.AccountID(3)
	node1Acct = types.AccountID(4)
)

var baseTime = time.Unix(1_700_000_000, 0).UTC()

// funcHandler adapts closures to dispatch.Handler and counts Handle calls.
type funcHandler struct {
	pre     func(*dispatch.PreHandleContext) error
	handle  func(*dispatch.HandleContext) error
	handled *int
}

func (h funcHandler) PreHandle(ctx *dispatch.PreHandleContext) error {
	if h.pre == nil {
		return nil
	}
	return h.pre(ctx)
}

func (h funcHandler) Handle(ctx *dispatch.HandleContext) error {
	if h.handled != nil {
		*h.handled++
	}
	if h.handle == nil {
		return nil
	}
	return h.handle(ctx)
}

type harness struct {
	t        *testing.T
	store    *state.Store
	dual     *state.DualState
	provider *config.Provider
	registry *dispatch.Registry
	pre      *prehandle.Workflow
	blocks   *records.BlockRecordManager
	workflow *Workflow
	keys     map[types.AccountID]*crypto.PrivateKey
	fees     fees.Fees
}

type harnessConfig struct {
	balances map[types.AccountID]uint64
	hooks    []hooks.ConsensusTimeHook
	global   func(*config.Global)
}

func defaultBalances() map[types.AccountID]uint64 {
	return map[types.AccountID]uint64{
		payerID:   1_000_000,
		otherID:   0,
		fundingID: 0,
		node0Acct: 0,
		node1Acct: 0,
		5:         0,
		800:       0,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, harnessConfig{})
}

func newHarnessWith(t *testing.T, hc harnessConfig) *harness {
	t.Helper()
	g := config.DefaultGlobal()
	if hc.global != nil {
		hc.global(&g)
	}
	provider, err := config.NewProvider(g)
	require.NoError(t, err)
	if hc.balances == nil {
		hc.balances = defaultBalances()
	}
	if hc.hooks == nil {
		hc.hooks = []hooks.ConsensusTimeHook{}
	}

	tr, err := trie.New(trie.NewMemoryDatabase(), common.Hash{})
	require.NoError(t, err)
	h := &harness{
		t:        t,
		store:    state.NewStore(tr),
		dual:     state.NewDualState(),
		provider: provider,
		keys:     make(map[types.AccountID]*crypto.PrivateKey),
	}
	sp := h.store.Begin()
	for id, balance := range hc.balances {
		key := deterministicKey(t, id)
		h.keys[id] = key
		require.NoError(t, sp.PutAccount(&types.Account{ID: id, Balance: balance, Key: key.PubKey().Key()}))
	}
	require.NoError(t, sp.Commit())

	h.registry = dispatch.NewRegistry()
	accounts.Register(h.registry)
	files.Register(h.registry)
	freeze.Register(h.registry)

	verifier := signature.NewVerifier(4)
	h.pre = prehandle.NewWorkflow(h.registry, verifier, provider, nil)
	h.blocks, err = records.NewBlockRecordManager(storage.NewMemDB(), g.BlockPeriod(), nil)
	require.NoError(t, err)
	h.workflow, err = NewWorkflow(Params{
		Dispatcher: h.registry,
		PreHandle:  h.pre,
		Verifier:   verifier,
		Config:     provider,
		Records:    h.blocks,
		Hooks:      hc.hooks,
	})
	require.NoError(t, err)

	h.fees, err = fees.Calculator{}.Compute(g, types.FunctionalityCryptoTransfer, 1)
	require.NoError(t, err)
	return h
}

func deterministicKey(t *testing.T, id types.AccountID) *crypto.PrivateKey {
	t.Helper()
	seed := make([]byte, 32)
	seed[0] = 0x01
	seed[30] = byte(id >> 8)
	seed[31] = byte(id)
	key, err := crypto.PrivateKeyFromBytes(seed)
	require.NoError(t, err)
	return key
}

func (h *harness) balance(id types.AccountID) uint64 {
	h.t.Helper()
	b, err := h.store.Snapshot().Balance(id)
	require.NoError(h.t, err)
	return b
}

func transferBody(node types.AccountID, validStart time.Time, amount int64) *types.TransactionBody {
	return &types.TransactionBody{
		TransactionID:        types.NewTransactionID(payerID, validStart),
		NodeAccount:          node,
		MaxFee:               1_000_000,
		ValidDurationSeconds: 120,
		CryptoTransfer: &types.CryptoTransferBody{Transfers: []types.AccountAmount{
			{Account: payerID, Amount: -amount},
			{Account: otherID, Amount: amount},
		}},
	}
}

// submit signs body with the keys of signers and wraps it as ordered at at.
func (h *harness) submit(body *types.TransactionBody, at time.Time, signers ...types.AccountID) *types.PlatformTransaction {
	h.t.Helper()
	tx, err := types.NewTransaction(body)
	require.NoError(h.t, err)
	for _, id := range signers {
		key, ok := h.keys[id]
		require.True(h.t, ok, "no key for %s", id)
		require.NoError(h.t, tx.Sign(key.PrivateKey))
	}
	contents, err := tx.Encode()
	require.NoError(h.t, err)
	return &types.PlatformTransaction{Contents: contents, ConsensusTime: at}
}

func consensusRound(number uint64, events ...*types.ConsensusEvent) *types.ConsensusRound {
	return &types.ConsensusRound{Number: number, Events: events}
}

func event(creator types.NodeID, txs ...*types.PlatformTransaction) *types.ConsensusEvent {
	return &types.ConsensusEvent{Creator: creator, Transactions: txs}
}

func (h *harness) handle(r *types.ConsensusRound) []records.SingleTransactionRecord {
	h.t.Helper()
	out, err := h.workflow.HandleRound(context.Background(), h.store, h.dual, r)
	require.NoError(h.t, err)
	return out
}

// handleOne handles a single transaction submitted by node 0 in its own round.
func (h *harness) handleOne(number uint64, tx *types.PlatformTransaction) records.SingleTransactionRecord {
	h.t.Helper()
	out := h.handle(consensusRound(number, event(0, tx)))
	require.Len(h.t, out, 1)
	return out[0]
}
