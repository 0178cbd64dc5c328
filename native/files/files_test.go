package files

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ledgernode/config"
	"ledgernode/core/dispatch"
	"ledgernode/core/signature"
	"ledgernode/core/state"
	"ledgernode/core/types"
	"ledgernode/storage/trie"
)

func setup(t *testing.T) (*state.Store, *config.Snapshot, *dispatch.Registry) {
	t.Helper()
	tr, err := trie.New(trie.NewMemoryDatabase(), common.Hash{})
	require.NoError(t, err)
	g := config.DefaultGlobal()
	g.Privileged.MaxSystemFileBytes = 8
	provider, err := config.NewProvider(g)
	require.NoError(t, err)
	return state.NewStore(tr), provider.Current(), Register(dispatch.NewRegistry())
}

func run(t *testing.T, store *state.Store, snap *config.Snapshot, r *dispatch.Registry, body *types.TransactionBody) dispatch.Outcome {
	t.Helper()
	sp := store.Begin()
	out := dispatch.Execute(r, dispatch.NewHandleContext(dispatch.HandleParams{
		Body:          body,
		ConsensusTime: time.Unix(100, 0),
		Config:        snap,
		Store:         sp,
		Lookup:        signature.NewLookup(context.Background(), time.Second),
	}))
	require.NoError(t, sp.Commit())
	return out
}

func contents(t *testing.T, store *state.Store, id types.FileID) []byte {
	t.Helper()
	file, err := store.Snapshot().GetFile(id)
	require.NoError(t, err)
	require.NotNil(t, file)
	return file.Contents
}

func TestSystemFileCreatedOnUpdateThenAppended(t *testing.T) {
	store, snap, r := setup(t)
	id := snap.Global.Privileged.ExchangeRateFile

	update := &types.TransactionBody{FileUpdate: &types.FileUpdateBody{File: id, Contents: []byte("abc")}}
	require.NoError(t, r.DispatchPreHandle(dispatch.NewPreHandleContext(store.Snapshot(), update, snap)))
	require.True(t, run(t, store, snap, r, update).Success())
	require.Equal(t, []byte("abc"), contents(t, store, id))

	appendBody := &types.TransactionBody{FileAppend: &types.FileAppendBody{File: id, Contents: []byte("def")}}
	require.True(t, run(t, store, snap, r, appendBody).Success())
	require.Equal(t, []byte("abcdef"), contents(t, store, id))

	tooLong := &types.TransactionBody{FileAppend: &types.FileAppendBody{File: id, Contents: []byte("ghi")}}
	out := run(t, store, snap, r, tooLong)
	require.Equal(t, dispatch.OutcomeBusinessFailure, out.Kind)
	require.Equal(t, []byte("abcdef"), contents(t, store, id))
}

func TestUserFileMustExist(t *testing.T) {
	store, snap, r := setup(t)
	body := &types.TransactionBody{FileUpdate: &types.FileUpdateBody{File: 5000, Contents: []byte("x")}}
	err := r.DispatchPreHandle(dispatch.NewPreHandleContext(store.Snapshot(), body, snap))
	code, ok := dispatch.ResponseCodeOf(err)
	require.True(t, ok)
	require.Equal(t, types.ResponseInvalidFileID, code)

	empty := &types.TransactionBody{FileAppend: &types.FileAppendBody{File: 5000}}
	err = r.DispatchPreHandle(dispatch.NewPreHandleContext(store.Snapshot(), empty, snap))
	code, _ = dispatch.ResponseCodeOf(err)
	require.Equal(t, types.ResponseFileContentEmpty, code)
}

func TestSystemDeleteMarksDeleted(t *testing.T) {
	store, snap, r := setup(t)
	sp := store.Begin()
	require.NoError(t, sp.PutFile(&types.File{ID: 5000, Contents: []byte("x")}))
	require.NoError(t, sp.Commit())

	body := &types.TransactionBody{SystemDelete: &types.SystemDeleteBody{File: 5000, ExpirySeconds: 900}}
	require.True(t, run(t, store, snap, r, body).Success())
	file, err := store.Snapshot().GetFile(5000)
	require.NoError(t, err)
	require.True(t, file.Deleted)
	require.Equal(t, uint64(900), file.Expiry)

	out := run(t, store, snap, r, body)
	require.Equal(t, types.ResponseInvalidFileID, out.Code)
}
