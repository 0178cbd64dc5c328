package solvency

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ledgernode/core/state"
	"ledgernode/core/types"
	"ledgernode/native/fees"
	"ledgernode/storage/trie"
)

func TestGetPayerAccount(t *testing.T) {
	tr, err := trie.New(trie.NewMemoryDatabase(), common.Hash{})
	require.NoError(t, err)
	sp := state.NewStore(tr).Begin()
	require.NoError(t, sp.PutAccount(&types.Account{ID: 1001, Balance: 5}))
	require.NoError(t, sp.PutAccount(&types.Account{ID: 1002, Deleted: true}))

	account, err := Checker{}.GetPayerAccount(sp.Manager, 1001)
	require.NoError(t, err)
	require.EqualValues(t, 5, account.Balance)

	for _, id := range []types.AccountID{1002, 1003} {
		_, err = Checker{}.GetPayerAccount(sp.Manager, id)
		code, ok := ResponseCodeOf(err)
		require.True(t, ok)
		require.Equal(t, types.ResponsePayerAccountNotFound, code)
	}
}

func TestCheckSolvency(t *testing.T) {
	f := fees.Fees{Node: 1, Network: 2, Service: 3}
	body := &types.TransactionBody{MaxFee: 6}

	require.NoError(t, Checker{}.CheckSolvency(body, &types.Account{ID: 1, Balance: 6}, f))

	err := Checker{}.CheckSolvency(body, &types.Account{ID: 1, Balance: 5}, f)
	code, ok := ResponseCodeOf(err)
	require.True(t, ok)
	require.Equal(t, types.ResponseInsufficientPayerBalance, code)

	err = Checker{}.CheckSolvency(&types.TransactionBody{MaxFee: 5}, &types.Account{ID: 1, Balance: 100}, f)
	code, ok = ResponseCodeOf(err)
	require.True(t, ok)
	require.Equal(t, types.ResponseInsufficientTxFee, code)

	_, ok = ResponseCodeOf(errors.New("other"))
	require.False(t, ok)
}
