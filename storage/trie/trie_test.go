package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestTrieCommitFlushPersistsData(t *testing.T) {
	dir := t.TempDir()

	db1, disk1, err := OpenDatabase(dir)
	require.NoError(t, err)

	tr, err := New(db1, common.Hash{})
	require.NoError(t, err)

	key := crypto.Keccak256Hash([]byte("key"))
	value := []byte("value")

	require.NoError(t, tr.Update(key.Bytes(), value))
	root, err := tr.Commit(1)
	require.NoError(t, err)

	require.NoError(t, db1.Close())
	require.NoError(t, disk1.Close())

	db2, disk2, err := OpenDatabase(dir)
	require.NoError(t, err)
	defer disk2.Close()

	restored, err := New(db2, root)
	require.NoError(t, err)

	got, err := restored.Get(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestTrieCopyIsolatesMutations(t *testing.T) {
	tr, err := New(NewMemoryDatabase(), common.Hash{})
	require.NoError(t, err)

	base := crypto.Keccak256([]byte("base"))
	require.NoError(t, tr.Update(base, []byte("1")))
	before := tr.Hash()

	cp := tr.Copy()
	other := crypto.Keccak256([]byte("other"))
	require.NoError(t, cp.Update(other, []byte("2")))

	got, err := tr.Get(other)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, before, tr.Hash())
	require.NotEqual(t, before, cp.Hash())
}
