package dedupe

import (
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ledgernode/core/state"
	"ledgernode/core/types"
	"ledgernode/storage/trie"
)

func TestHasDuplicateClassifiesByNode(t *testing.T) {
	cache := NewCache()
	id := types.TransactionID{Payer: 1001, ValidStartSeconds: 10}
	now := time.Unix(20, 0)

	require.Equal(t, NoDuplicate, cache.HasDuplicate(id, 0))
	cache.Add(id, 0, Receipt{Status: types.ResponseSuccess, ConsensusTime: now}, now.Add(time.Minute))
	require.Equal(t, SameNode, cache.HasDuplicate(id, 0))
	require.Equal(t, OtherNode, cache.HasDuplicate(id, 1))

	cache.Add(id, 1, Receipt{Status: types.ResponseDuplicateTransaction}, now.Add(time.Minute))
	require.Equal(t, SameNode, cache.HasDuplicate(id, 1))
	require.Equal(t, []types.NodeID{0, 1}, cache.Nodes(id))

	receipt, ok := cache.Receipt(id)
	require.True(t, ok)
	require.Equal(t, types.ResponseSuccess, receipt.Status, "first receipt wins")
	require.Equal(t, id, receipt.TransactionID)
	require.Equal(t, 1, receipt.Duplicates)
}

func TestPruneDropsExpired(t *testing.T) {
	cache := NewCache()
	base := time.Unix(1000, 0)
	early := types.TransactionID{Payer: 1, ValidStartSeconds: 1}
	late := types.TransactionID{Payer: 2, ValidStartSeconds: 2}
	cache.Add(early, 0, Receipt{}, base)
	cache.Add(late, 0, Receipt{}, base.Add(time.Hour))

	require.Zero(t, cache.Prune(base))
	require.Equal(t, 1, cache.Prune(base.Add(time.Second)))
	require.Equal(t, 1, cache.Len())
	_, ok := cache.Receipt(early)
	require.False(t, ok)
	require.Equal(t, NoDuplicate, cache.HasDuplicate(early, 0))
}

func TestConcurrentReceiptReaders(t *testing.T) {
	cache := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Receipt(types.TransactionID{Payer: types.AccountID(j)})
			}
		}(i)
	}
	for j := 0; j < 100; j++ {
		cache.Add(types.TransactionID{Payer: types.AccountID(j)}, 0, Receipt{}, time.Unix(int64(j), 0))
	}
	wg.Wait()
	require.Equal(t, 100, cache.Len())
}

func TestSaveAndLoadRestoresEntries(t *testing.T) {
	tr, err := trie.New(trie.NewMemoryDatabase(), common.Hash{})
	require.NoError(t, err)
	store := state.NewStore(tr)

	cache := NewCache()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := types.TransactionID{Payer: 1001, ValidStartSeconds: 10}
	second := types.TransactionID{Payer: 1002, ValidStartSeconds: 5, Nonce: 1}
	cache.Add(first, 0, Receipt{Status: types.ResponseSuccess, ConsensusTime: now}, now.Add(time.Minute))
	cache.Add(first, 2, Receipt{Status: types.ResponseDuplicateTransaction}, now.Add(2*time.Minute))
	cache.Add(second, 1, Receipt{Status: types.ResponseInsufficientPayerBalance, ConsensusTime: now.Add(time.Second)}, now.Add(time.Hour))

	sp := store.Begin()
	require.NoError(t, cache.Save(sp.Manager))
	require.NoError(t, sp.Commit())

	restored := NewCache()
	require.NoError(t, restored.Load(store.Snapshot()))
	require.Equal(t, 2, restored.Len())
	require.Equal(t, SameNode, restored.HasDuplicate(first, 2))
	require.Equal(t, OtherNode, restored.HasDuplicate(first, 1))
	require.Equal(t, []types.NodeID{0, 2}, restored.Nodes(first))

	want, _ := cache.Receipt(first)
	got, ok := restored.Receipt(first)
	require.True(t, ok)
	require.Equal(t, want.Status, got.Status)
	require.Equal(t, want.Duplicates, got.Duplicates)
	require.True(t, want.ConsensusTime.Equal(got.ConsensusTime))

	require.Equal(t, 1, restored.Prune(now.Add(90*time.Second)), "expiry survives the round trip")
	require.Equal(t, NoDuplicate, restored.HasDuplicate(first, 0))

	other := NewCache()
	other.Add(second, 1, Receipt{Status: types.ResponseInsufficientPayerBalance, ConsensusTime: now.Add(time.Second)}, now.Add(time.Hour))
	other.Add(first, 0, Receipt{Status: types.ResponseSuccess, ConsensusTime: now}, now.Add(time.Minute))
	other.Add(first, 2, Receipt{Status: types.ResponseDuplicateTransaction}, now.Add(2*time.Minute))
	sp = store.Begin()
	before := sp.Root()
	require.NoError(t, other.Save(sp.Manager))
	require.Equal(t, before, sp.Root(), "insertion order does not change the stored form")
	sp.Rollback()
}

func TestLoadFromEmptyStateClearsCache(t *testing.T) {
	tr, err := trie.New(trie.NewMemoryDatabase(), common.Hash{})
	require.NoError(t, err)
	cache := NewCache()
	cache.Add(types.TransactionID{Payer: 1}, 0, Receipt{}, time.Unix(100, 0))
	require.NoError(t, cache.Load(state.NewStore(tr).Snapshot()))
	require.Zero(t, cache.Len())
}
