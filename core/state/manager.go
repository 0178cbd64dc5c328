package state

import (
	"bytes"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"ledgernode/storage/trie"
)

// ErrEmptyKey is returned for a ledger entity addressed by an empty key.
var ErrEmptyKey = errors.New("state: empty key")

// Manager reads and writes RLP-encoded ledger entities stored in a trie. A
// Manager is bound to a single trie and is not safe for concurrent use; the
// Store hands out managers over isolated copies.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// slot maps an entity key to its trie path.
func slot(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	return ethcrypto.Keccak256(key), nil
}

func (m *Manager) load(key []byte) ([]byte, error) {
	path, err := slot(key)
	if err != nil {
		return nil, err
	}
	return m.trie.Get(path)
}

// KVPut RLP-encodes value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	path, err := slot(key)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(path, encoded)
}

// KVGet decodes the value under key into out and reports whether it was
// present. A nil out only checks presence.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	data, err := m.load(key)
	if err != nil || len(data) == 0 {
		return false, err
	}
	if out != nil {
		if err := rlp.DecodeBytes(data, out); err != nil {
			return false, err
		}
	}
	return true, nil
}

// KVDelete removes the value under key.
func (m *Manager) KVDelete(key []byte) error {
	path, err := slot(key)
	if err != nil {
		return err
	}
	return m.trie.Delete(path)
}

// KVAppend adds value to the byte-slice set stored under key, keeping
// insertion order. Values already present are ignored.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if err := m.KVGetList(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	return m.KVPut(key, append(list, bytes.Clone(value)))
}

// KVGetList decodes the list under key into out, a pointer to a slice. A
// missing key decodes as an empty, non-nil slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	data, err := m.load(key)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		data = rlp.EmptyList
	}
	return rlp.DecodeBytes(data, out)
}
