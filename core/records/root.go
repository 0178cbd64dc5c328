package records

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"ledgernode/storage/trie"
)

// ComputeRecordRoot commits to the ordered records of a block with a
// throwaway in-memory trie keyed by the RLP encoding of each record's index.
// An empty block yields the empty trie root.
func ComputeRecordRoot(encoded []json.RawMessage) (common.Hash, error) {
	tr, err := trie.New(trie.NewMemoryDatabase(), common.Hash{})
	if err != nil {
		return common.Hash{}, err
	}
	for i, rec := range encoded {
		if err := tr.Update(rlp.AppendUint64(nil, uint64(i)), rec); err != nil {
			return common.Hash{}, err
		}
	}
	return tr.Hash(), nil
}
