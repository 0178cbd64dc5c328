package freeze

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

func TestFreezeValidation(t *testing.T) {
	tr, err := trie.New(trie.NewMemoryDatabase(), common.Hash{})
	require.NoError(t, err)
	store := state.NewStore(tr)
	provider, err := config.NewProvider(config.DefaultGlobal())
	require.NoError(t, err)
	r := Register(dispatch.NewRegistry())

	cases := []struct {
		name string
		op   types.FreezeBody
		pre  types.ResponseCode
		code types.ResponseCode
	}{
		{"future", types.FreezeBody{StartSeconds: 200}, types.ResponseOK, types.ResponseSuccess},
		{"past", types.FreezeBody{StartSeconds: 50}, types.ResponseOK, types.ResponseInvalidFreezeTime},
		{"abort", types.FreezeBody{Abort: true}, types.ResponseOK, types.ResponseSuccess},
		{"missing start", types.FreezeBody{}, types.ResponseInvalidFreezeTransactionBody, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			op := tc.op
			body := &types.TransactionBody{Freeze: &op}
			err := r.DispatchPreHandle(dispatch.NewPreHandleContext(store.Snapshot(), body, provider.Current()))
			if tc.pre != types.ResponseOK {
				code, _ := dispatch.ResponseCodeOf(err)
				require.Equal(t, tc.pre, code)
				return
			}
			require.NoError(t, err)
			out := dispatch.Execute(r, dispatch.NewHandleContext(dispatch.HandleParams{
				Body:          body,
				ConsensusTime: time.Unix(100, 0),
				Config:        provider.Current(),
				Store:         store.Begin(),
				Lookup:        signature.NewLookup(context.Background(), time.Second),
			}))
			require.Equal(t, tc.code, out.Code)
		})
	}
}
