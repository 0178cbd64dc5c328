package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/triedb"
)

const (
	levelDBCacheMB = 64
	levelDBHandles = 256
)

// NewMemoryDatabase returns a hash-scheme trie database held in memory.
func NewMemoryDatabase() *triedb.Database {
	return triedb.NewDatabase(rawdb.NewDatabase(memorydb.New()), triedb.HashDefaults)
}

// OpenDatabase opens a LevelDB-backed trie database at path. The returned
// ethdb handle must be closed after the trie database is no longer used.
func OpenDatabase(path string) (*triedb.Database, ethdb.Database, error) {
	kv, err := leveldb.New(path, levelDBCacheMB, levelDBHandles, "ledgernode/state/", false)
	if err != nil {
		return nil, nil, fmt.Errorf("open state database: %w", err)
	}
	disk := rawdb.NewDatabase(kv)
	return triedb.NewDatabase(disk, triedb.HashDefaults), disk, nil
}
