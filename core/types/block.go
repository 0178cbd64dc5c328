package types

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// BlockHeader summarises a closed block of the record stream.
type BlockHeader struct {
	Number             uint64    `json:"number"`
	FirstConsensusTime time.Time `json:"firstConsensusTime"`
	LastConsensusTime  time.Time `json:"lastConsensusTime"`
	PrevRunningHash    []byte    `json:"prevRunningHash"`
	RunningHash        []byte    `json:"runningHash"`
	RecordCount        uint64    `json:"recordCount"`
	// RecordRoot commits to the ordered records of the block.
	RecordRoot common.Hash `json:"recordRoot"`
}

// Block is a closed block: its header and the encoded records it contains.
type Block struct {
	Header  *BlockHeader      `json:"header"`
	Records []json.RawMessage `json:"records"`
}

// Hash computes the keccak256 hash of the JSON-encoded header.
func (h *BlockHeader) Hash() ([]byte, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(b), nil
}
