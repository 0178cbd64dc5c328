package dedupe

import (
	"sort"
	"sync"
	"time"

	"ledgernode/core/types"
)

// DuplicateCheckResult is the outcome of a duplicate lookup.
type DuplicateCheckResult uint8

const (
	NoDuplicate DuplicateCheckResult = iota
	// SameNode means the submitting node already submitted this transaction.
	SameNode
	// OtherNode means only other nodes submitted this transaction before.
	OtherNode
)

func (r DuplicateCheckResult) String() string {
	switch r {
	case SameNode:
		return "SAME_NODE"
	case OtherNode:
		return "OTHER_NODE"
	default:
		return "NO_DUPLICATE"
	}
}

// Receipt is the queryable outcome of the first handled submission of a
// transaction.
type Receipt struct {
	TransactionID types.TransactionID `json:"transactionID"`
	Status        types.ResponseCode  `json:"status"`
	ConsensusTime time.Time           `json:"consensusTimestamp"`
	Node          types.NodeID        `json:"nodeID"`
	Duplicates    int                 `json:"duplicates"`
}

type entry struct {
	receipt Receipt
	nodes   map[types.NodeID]struct{}
	expiry  time.Time
}

// Cache remembers handled transaction ids until their validity window has
// passed. The handle workflow is the only writer; receipt queries may run
// concurrently.
type Cache struct {
	mu      sync.RWMutex
	entries map[types.TransactionID]*entry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[types.TransactionID]*entry)}
}

// HasDuplicate classifies a submission of id by node against earlier
// submissions.
func (c *Cache) HasDuplicate(id types.TransactionID, node types.NodeID) DuplicateCheckResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return NoDuplicate
	}
	if _, same := e.nodes[node]; same {
		return SameNode
	}
	return OtherNode
}

// Add records a handled submission. The first receipt for an id is kept;
// later submissions only add their node. expiry is when the id can no longer
// pass the validity window check.
func (c *Cache) Add(id types.TransactionID, node types.NodeID, receipt Receipt, expiry time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		receipt.TransactionID = id
		receipt.Node = node
		c.entries[id] = &entry{
			receipt: receipt,
			nodes:   map[types.NodeID]struct{}{node: {}},
			expiry:  expiry,
		}
		return
	}
	e.nodes[node] = struct{}{}
	e.receipt.Duplicates++
	if expiry.After(e.expiry) {
		e.expiry = expiry
	}
}

// Receipt returns the receipt of the first handled submission of id.
func (c *Cache) Receipt(id types.TransactionID) (Receipt, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return Receipt{}, false
	}
	return e.receipt, true
}

// Nodes lists the nodes that submitted id, in ascending order.
func (c *Cache) Nodes(id types.TransactionID) []types.NodeID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return nil
	}
	out := make([]types.NodeID, 0, len(e.nodes))
	for node := range e.nodes {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Prune drops every id whose window closed before now and returns how many
// were removed.
func (c *Cache) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, e := range c.entries {
		if e.expiry.Before(now) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of remembered ids.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
