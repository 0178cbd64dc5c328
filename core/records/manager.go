package records

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"ledgernode/core/state"
	"ledgernode/core/types"
	"ledgernode/observability"
	"ledgernode/observability/logging"
	"ledgernode/storage"
)

var (
	// ErrClockNotMonotonic is returned when consensus time does not advance.
	ErrClockNotMonotonic = errors.New("records: consensus time must advance")
	// ErrNoUserTransaction is returned when a record is ended without a start.
	ErrNoUserTransaction = errors.New("records: no user transaction in progress")
	// ErrUserTransactionOpen is returned when a user transaction is started
	// twice.
	ErrUserTransactionOpen = errors.New("records: user transaction already in progress")

	blockPrefix = []byte("records/block/")
	metaKey     = []byte("records/meta")
)

type streamMeta struct {
	BlockNumber       uint64      `json:"blockNumber"`
	RunningHash       []byte      `json:"runningHash"`
	LastConsensusTime time.Time   `json:"lastConsensusTime"`
	StateRoot         common.Hash `json:"stateRoot"`
	Round             uint64      `json:"round"`
}

func blockKey(number uint64) []byte {
	buf := make([]byte, len(blockPrefix)+8)
	copy(buf, blockPrefix)
	binary.BigEndian.PutUint64(buf[len(blockPrefix):], number)
	return buf
}

// BlockRecordManager owns the consensus clock and the record stream. Records
// are chained with a running hash and grouped into blocks spanning a fixed
// period of consensus time; closed blocks are persisted to the database.
type BlockRecordManager struct {
	mu     sync.RWMutex
	db     storage.Database
	period time.Duration
	logger *slog.Logger

	meta       streamMeta
	lastHeader *types.BlockHeader

	blockStart  time.Time
	blockLast   time.Time
	blockPrev   []byte
	pending     []json.RawMessage
	inTxn       bool
	txnStart    time.Time
	txnPreState common.Hash
}

// NewBlockRecordManager resumes the record stream stored in db.
func NewBlockRecordManager(db storage.Database, period time.Duration, logger *slog.Logger) (*BlockRecordManager, error) {
	if period <= 0 {
		return nil, fmt.Errorf("records: block period must be positive")
	}
	m := &BlockRecordManager{
		db:     db,
		period: period,
		logger: logging.Component(logger, "records"),
		meta:   streamMeta{RunningHash: make([]byte, common.HashLength)},
	}
	raw, err := db.Get(metaKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("records: load stream metadata: %w", err)
	default:
		if err := json.Unmarshal(raw, &m.meta); err != nil {
			return nil, fmt.Errorf("records: decode stream metadata: %w", err)
		}
		if m.meta.BlockNumber > 0 {
			block, err := m.Block(m.meta.BlockNumber - 1)
			if err == nil {
				m.lastHeader = block.Header
			}
		}
	}
	m.blockPrev = append([]byte(nil), m.meta.RunningHash...)
	return m, nil
}

// ConsensusTime returns the last consensus time the clock advanced to.
func (m *BlockRecordManager) ConsensusTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta.LastConsensusTime
}

// RunningHash returns the running hash over every record emitted so far.
func (m *BlockRecordManager) RunningHash() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.meta.RunningHash...)
}

// LastBlock returns the header of the most recently closed block.
func (m *BlockRecordManager) LastBlock() (*types.BlockHeader, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastHeader == nil {
		return nil, false
	}
	header := *m.lastHeader
	return &header, true
}

// AdvanceConsensusClock moves the clock to t, closing the current block when
// t falls past its period.
func (m *BlockRecordManager) AdvanceConsensusClock(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t = t.UTC()
	if !m.meta.LastConsensusTime.IsZero() && !t.After(m.meta.LastConsensusTime) {
		return fmt.Errorf("%w: %s after %s", ErrClockNotMonotonic, t.Format(time.RFC3339Nano), m.meta.LastConsensusTime.Format(time.RFC3339Nano))
	}
	if len(m.pending) > 0 && t.Sub(m.blockStart) >= m.period {
		if err := m.closeBlockLocked(); err != nil {
			return err
		}
	}
	m.meta.LastConsensusTime = t
	return nil
}

// StartUserTransaction opens the scope of a user transaction handled at the
// current consensus time. preState is the state root before the transaction.
func (m *BlockRecordManager) StartUserTransaction(preState common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inTxn {
		return ErrUserTransactionOpen
	}
	m.inTxn = true
	m.txnStart = m.meta.LastConsensusTime
	m.txnPreState = preState
	return nil
}

// EndUserTransaction appends rec to the stream and closes the scope. The last
// consensus time moves past any child records.
func (m *BlockRecordManager) EndUserTransaction(rec SingleTransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.inTxn {
		return ErrNoUserTransaction
	}
	m.inTxn = false
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("records: encode record: %w", err)
	}
	if len(m.pending) == 0 {
		m.blockStart = m.txnStart
		m.blockPrev = append([]byte(nil), m.meta.RunningHash...)
	}
	m.meta.RunningHash = crypto.Keccak256(m.meta.RunningHash, crypto.Keccak256(encoded))
	m.pending = append(m.pending, encoded)
	m.blockLast = rec.Record.ConsensusTime
	for _, child := range rec.Children {
		if child.ConsensusTime.After(m.meta.LastConsensusTime) {
			m.meta.LastConsensusTime = child.ConsensusTime
		}
		if child.ConsensusTime.After(m.blockLast) {
			m.blockLast = child.ConsensusTime
		}
	}
	return nil
}

// EndRound commits the state store and persists the stream position so a
// restart resumes after the round.
func (m *BlockRecordManager) EndRound(store *state.Store, round uint64) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inTxn {
		return common.Hash{}, ErrUserTransactionOpen
	}
	root, err := store.Commit(m.meta.BlockNumber)
	if err != nil {
		return common.Hash{}, fmt.Errorf("records: commit state: %w", err)
	}
	m.meta.StateRoot = root
	m.meta.Round = round
	if err := m.persistMetaLocked(); err != nil {
		return common.Hash{}, err
	}
	return root, nil
}

// Flush closes the block in progress, if any.
func (m *BlockRecordManager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil
	}
	if err := m.closeBlockLocked(); err != nil {
		return err
	}
	return m.persistMetaLocked()
}

// StateRoot returns the state root persisted at the end of the last round
// and the round number.
func (m *BlockRecordManager) StateRoot() (common.Hash, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta.StateRoot, m.meta.Round
}

// Block loads a closed block.
func (m *BlockRecordManager) Block(number uint64) (*types.Block, error) {
	raw, err := m.db.Get(blockKey(number))
	if err != nil {
		return nil, err
	}
	block := new(types.Block)
	if err := json.Unmarshal(raw, block); err != nil {
		return nil, fmt.Errorf("records: decode block %d: %w", number, err)
	}
	return block, nil
}

func (m *BlockRecordManager) closeBlockLocked() error {
	recordRoot, err := ComputeRecordRoot(m.pending)
	if err != nil {
		return fmt.Errorf("records: record root: %w", err)
	}
	header := &types.BlockHeader{
		Number:             m.meta.BlockNumber,
		FirstConsensusTime: m.blockStart,
		LastConsensusTime:  m.blockLast,
		PrevRunningHash:    append([]byte(nil), m.blockPrev...),
		RunningHash:        append([]byte(nil), m.meta.RunningHash...),
		RecordCount:        uint64(len(m.pending)),
		RecordRoot:         recordRoot,
	}
	encoded, err := json.Marshal(&types.Block{Header: header, Records: m.pending})
	if err != nil {
		return fmt.Errorf("records: encode block: %w", err)
	}
	if err := m.db.Put(blockKey(header.Number), encoded); err != nil {
		return fmt.Errorf("records: persist block %d: %w", header.Number, err)
	}
	observability.Stream().RecordBlock(header.Number, len(m.pending))
	m.logger.Debug("block closed",
		slog.Uint64("block", header.Number),
		slog.Int("records", len(m.pending)))
	m.lastHeader = header
	m.meta.BlockNumber++
	m.pending = nil
	return nil
}

func (m *BlockRecordManager) persistMetaLocked() error {
	encoded, err := json.Marshal(m.meta)
	if err != nil {
		return fmt.Errorf("records: encode stream metadata: %w", err)
	}
	if err := m.db.Put(metaKey, encoded); err != nil {
		return fmt.Errorf("records: persist stream metadata: %w", err)
	}
	return nil
}
