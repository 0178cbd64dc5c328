package dispatch

import (
	"context"
	"fmt"
	"time"

	"ledgernode/config"
	"ledgernode/core/signature"
	"ledgernode/core/state"
	"ledgernode/core/types"
)

// PreHandleContext is handed to business logic to declare the keys a
// transaction needs before any state is written. The view is read-only.
type PreHandleContext struct {
	View   *state.Manager
	Body   *types.TransactionBody
	Config *config.Snapshot
	Payer  types.AccountID

	required []types.Key
	optional []types.Key
	seen     map[string]bool
}

// NewPreHandleContext returns a context over view for body.
func NewPreHandleContext(view *state.Manager, body *types.TransactionBody, cfg *config.Snapshot) *PreHandleContext {
	return &PreHandleContext{
		View:   view,
		Body:   body,
		Config: cfg,
		Payer:  body.TransactionID.Payer,
		seen:   make(map[string]bool),
	}
}

// RequireKey marks key as required. Empty keys are ignored.
func (c *PreHandleContext) RequireKey(key types.Key) {
	if len(key) == 0 || c.seen[string(key)] {
		return
	}
	c.seen[string(key)] = true
	c.required = append(c.required, append(types.Key(nil), key...))
}

// OptionalKey marks key as optional. A key already required stays required.
func (c *PreHandleContext) OptionalKey(key types.Key) {
	if len(key) == 0 || c.seen[string(key)] {
		return
	}
	c.seen[string(key)] = true
	c.optional = append(c.optional, append(types.Key(nil), key...))
}

// RequireAccountKey requires the key of a live account and fails with code
// when the account cannot be resolved.
func (c *PreHandleContext) RequireAccountKey(id types.AccountID, code types.ResponseCode) error {
	account, err := c.View.LiveAccount(id)
	if err != nil {
		return &PreCheckError{Code: code}
	}
	if len(account.Key) == 0 {
		return &PreCheckError{Code: types.ResponseKeyRequired}
	}
	if id != c.Payer {
		c.RequireKey(account.Key)
	}
	return nil
}

// RequiredKeys returns the non-payer keys declared required, in declaration
// order.
func (c *PreHandleContext) RequiredKeys() []types.Key {
	return c.required
}

// OptionalKeys returns the keys declared optional, in declaration order.
func (c *PreHandleContext) OptionalKeys() []types.Key {
	return c.optional
}

// Effects are the side effects of a dispatched transaction that end up in its
// record. They are discarded together with the state writes on rollback.
type Effects struct {
	Transfers      map[types.AccountID]int64
	CreatedAccount types.AccountID
	Children       []ChildRecord
}

// ChildRecord describes an auxiliary record implied by the parent transaction.
type ChildRecord struct {
	Memo      string
	Transfers map[types.AccountID]int64
}

// HandleContext is the capability set business logic receives for one
// transaction: the writable store, the verification lookup and the record
// side-effect sinks. It lives exactly as long as the transaction.
type HandleContext struct {
	Ctx           context.Context
	Body          *types.TransactionBody
	ConsensusTime time.Time
	Config        *config.Snapshot
	Payer         types.AccountID
	Creator       types.NodeInfo

	store   *state.Savepoint
	lookup  *signature.Lookup
	dual    *state.DualState
	effects Effects
}

// HandleParams carries the inputs of NewHandleContext.
type HandleParams struct {
	Ctx           context.Context
	Body          *types.TransactionBody
	ConsensusTime time.Time
	Config        *config.Snapshot
	Creator       types.NodeInfo
	Store         *state.Savepoint
	Lookup        *signature.Lookup
	DualState     *state.DualState
}

// NewHandleContext builds the per-transaction capability struct.
func NewHandleContext(p HandleParams) *HandleContext {
	ctx := p.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return &HandleContext{
		Ctx:           ctx,
		Body:          p.Body,
		ConsensusTime: p.ConsensusTime,
		Config:        p.Config,
		Payer:         p.Body.TransactionID.Payer,
		Creator:       p.Creator,
		store:         p.Store,
		lookup:        p.Lookup,
		dual:          p.DualState,
		effects:       Effects{Transfers: make(map[types.AccountID]int64)},
	}
}

// Store returns the writable state for the dispatch in progress.
func (c *HandleContext) Store() *state.Savepoint {
	return c.store
}

// DualState returns the administrative state.
func (c *HandleContext) DualState() *state.DualState {
	return c.dual
}

// VerificationFor returns the verification of key, failed when absent.
func (c *HandleContext) VerificationFor(key types.Key) signature.Verification {
	if c.lookup == nil {
		return signature.Failed(key)
	}
	return c.lookup.VerificationFor(key)
}

// IsSigned reports whether key has a passing verification.
func (c *HandleContext) IsSigned(key types.Key) bool {
	return c.VerificationFor(key).Passed
}

// Transfer moves amount between live accounts and notes it in the record.
func (c *HandleContext) Transfer(from, to types.AccountID, amount uint64) error {
	if err := c.store.Transfer(from, to, amount); err != nil {
		return err
	}
	if amount > 0 && from != to {
		c.effects.Transfers[from] -= int64(amount)
		c.effects.Transfers[to] += int64(amount)
	}
	return nil
}

// NoteCredit records a balance change made directly on the store.
func (c *HandleContext) NoteCredit(account types.AccountID, amount int64) {
	c.effects.Transfers[account] += amount
}

// SetCreatedAccount records the account created by the transaction.
func (c *HandleContext) SetCreatedAccount(id types.AccountID) {
	c.effects.CreatedAccount = id
}

// AddChildRecord appends an auxiliary record implied by the transaction.
func (c *HandleContext) AddChildRecord(memo string, transfers map[types.AccountID]int64) {
	copied := make(map[types.AccountID]int64, len(transfers))
	for k, v := range transfers {
		copied[k] = v
	}
	c.effects.Children = append(c.effects.Children, ChildRecord{Memo: memo, Transfers: copied})
}

// Effects returns the side effects accumulated so far.
func (c *HandleContext) Effects() Effects {
	return c.effects
}

func (c *HandleContext) bind(sp *state.Savepoint) func() {
	prev := c.store
	c.store = sp
	return func() { c.store = prev }
}

func (c *HandleContext) resetEffects() {
	c.effects = Effects{Transfers: make(map[types.AccountID]int64)}
}

func (c *HandleContext) String() string {
	return fmt.Sprintf("%s@%s", c.Body.TransactionID, c.ConsensusTime.Format(time.RFC3339Nano))
}
