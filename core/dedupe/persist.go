package dedupe

import (
	"fmt"
	"sort"

	"ledgernode/core/state"
	"ledgernode/core/types"
)

var entriesKey = []byte("dedupe/entries")

type storedEntry struct {
	ID            types.TransactionID
	Status        types.ResponseCode
	ConsensusTime uint64
	Node          types.NodeID
	Duplicates    uint64
	Nodes         []types.NodeID
	Expiry        uint64
}

func lessID(a, b types.TransactionID) bool {
	switch {
	case a.Payer != b.Payer:
		return a.Payer < b.Payer
	case a.ValidStartSeconds != b.ValidStartSeconds:
		return a.ValidStartSeconds < b.ValidStartSeconds
	case a.ValidStartNanos != b.ValidStartNanos:
		return a.ValidStartNanos < b.ValidStartNanos
	default:
		return a.Nonce < b.Nonce
	}
}

// Save writes the remembered ids to m in id order, so equal caches produce
// equal state.
func (c *Cache) Save(m *state.Manager) error {
	c.mu.RLock()
	stored := make([]storedEntry, 0, len(c.entries))
	for id, e := range c.entries {
		nodes := make([]types.NodeID, 0, len(e.nodes))
		for node := range e.nodes {
			nodes = append(nodes, node)
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
		stored = append(stored, storedEntry{
			ID:            id,
			Status:        e.receipt.Status,
			ConsensusTime: types.UnixNanos(e.receipt.ConsensusTime),
			Node:          e.receipt.Node,
			Duplicates:    uint64(e.receipt.Duplicates),
			Nodes:         nodes,
			Expiry:        types.UnixNanos(e.expiry),
		})
	}
	c.mu.RUnlock()

	if len(stored) == 0 {
		return m.KVDelete(entriesKey)
	}
	sort.Slice(stored, func(i, j int) bool { return lessID(stored[i].ID, stored[j].ID) })
	return m.KVPut(entriesKey, stored)
}

// Load replaces the cache contents with the ids saved in m.
func (c *Cache) Load(m *state.Manager) error {
	var stored []storedEntry
	if err := m.KVGetList(entriesKey, &stored); err != nil {
		return fmt.Errorf("load dedupe entries: %w", err)
	}
	entries := make(map[types.TransactionID]*entry, len(stored))
	for _, s := range stored {
		nodes := make(map[types.NodeID]struct{}, len(s.Nodes))
		for _, node := range s.Nodes {
			nodes[node] = struct{}{}
		}
		entries[s.ID] = &entry{
			receipt: Receipt{
				TransactionID: s.ID,
				Status:        s.Status,
				ConsensusTime: types.FromUnixNanos(s.ConsensusTime),
				Node:          s.Node,
				Duplicates:    int(s.Duplicates),
			},
			nodes:  nodes,
			expiry: types.FromUnixNanos(s.Expiry),
		}
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}
