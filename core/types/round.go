package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PlatformTransaction is a transaction as ordered by consensus. The handle
// workflow only reads it.
type PlatformTransaction struct {
	Contents      []byte
	ConsensusTime time.Time
	// System marks platform-internal transactions that carry no user payload.
	System bool
}

// Hash returns the content hash of the transaction.
func (tx *PlatformTransaction) Hash() common.Hash {
	return TransactionHash(tx.Contents)
}

// ConsensusEvent groups transactions created by one node, in consensus order.
type ConsensusEvent struct {
	Creator      NodeID
	Transactions []*PlatformTransaction
}

// ConsensusRound is a finalized, totally ordered batch of events.
type ConsensusRound struct {
	Number uint64
	Events []*ConsensusEvent
}

// TransactionCount returns the number of platform transactions in the round,
// system transactions included.
func (r *ConsensusRound) TransactionCount() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, ev := range r.Events {
		if ev != nil {
			total += len(ev.Transactions)
		}
	}
	return total
}
