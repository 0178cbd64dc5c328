package state

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"ledgernode/storage/trie"
)

// ErrSavepointClosed is returned when a savepoint is used after it was
// committed or rolled back.
var ErrSavepointClosed = errors.New("state: savepoint closed")

// Store owns the committed ledger trie. Writers mutate isolated savepoints and
// publish them atomically; readers obtain snapshots that never observe
// uncommitted writes.
type Store struct {
	mu   sync.RWMutex
	trie *trie.Trie
}

// NewStore wraps the provided trie.
func NewStore(tr *trie.Trie) *Store {
	return &Store{trie: tr}
}

// Root returns the hash of the published state, including changes that were
// published but not yet flushed by Commit.
func (s *Store) Root() common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trie.Hash()
}

// Snapshot returns a read-only manager over a private copy of the published
// state.
func (s *Store) Snapshot() *Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewManager(s.trie.Copy())
}

// Begin opens a top-level savepoint over a copy of the published state.
func (s *Store) Begin() *Savepoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr := s.trie.Copy()
	return &Savepoint{Manager: NewManager(tr), store: s, trie: tr}
}

// Commit flushes the published state to the trie database and returns the new
// root.
func (s *Store) Commit(blockNumber uint64) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trie.Commit(blockNumber)
}

func (s *Store) publish(tr *trie.Trie) {
	s.mu.Lock()
	s.trie = tr
	s.mu.Unlock()
}

// Savepoint is a writable, rollback-capable view of the state. Savepoints nest:
// committing a child folds its writes into the parent, committing a top-level
// savepoint publishes them to the Store.
type Savepoint struct {
	*Manager

	store  *Store
	parent *Savepoint
	trie   *trie.Trie
	closed bool
}

// Begin opens a nested savepoint over the current contents of sp.
func (sp *Savepoint) Begin() (*Savepoint, error) {
	if sp.closed {
		return nil, ErrSavepointClosed
	}
	tr := sp.trie.Copy()
	return &Savepoint{Manager: NewManager(tr), store: sp.store, parent: sp, trie: tr}, nil
}

// Commit makes the writes of sp visible to its parent, or publishes them when
// sp is a top-level savepoint.
func (sp *Savepoint) Commit() error {
	if sp.closed || (sp.parent != nil && sp.parent.closed) {
		return ErrSavepointClosed
	}
	sp.closed = true
	if sp.parent == nil {
		sp.store.publish(sp.trie)
		return nil
	}
	sp.parent.trie = sp.trie
	sp.parent.Manager.trie = sp.trie
	return nil
}

// Rollback discards the writes of sp. Rolling back a closed savepoint is a
// no-op so it can be deferred.
func (sp *Savepoint) Rollback() {
	if sp.closed {
		return
	}
	sp.closed = true
}

// Root returns the hash of the savepoint contents.
func (sp *Savepoint) Root() common.Hash {
	return sp.trie.Hash()
}

// Closed reports whether the savepoint was committed or rolled back.
func (sp *Savepoint) Closed() bool {
	return sp.closed
}
