package records

import (
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ledgernode/core/signature"
	"ledgernode/core/types"
)

// FeeCharged itemises the fee taken for a transaction and who paid it.
type FeeCharged struct {
	Payer   types.AccountID `json:"payer"`
	Node    uint64          `json:"nodeFee"`
	Network uint64          `json:"networkFee"`
	Service uint64          `json:"serviceFee"`
}

// Total returns the sum of all charged components.
func (f FeeCharged) Total() uint64 {
	return f.Node + f.Network + f.Service
}

// TransactionRecord is the externalized result of one transaction or one of
// its children.
type TransactionRecord struct {
	ConsensusTime       time.Time             `json:"consensusTimestamp"`
	ParentConsensusTime *time.Time            `json:"parentConsensusTimestamp,omitempty"`
	TransactionID       types.TransactionID   `json:"transactionID"`
	TransactionHash     common.Hash           `json:"transactionHash"`
	Memo                string                `json:"memo,omitempty"`
	Status              types.ResponseCode    `json:"status"`
	TransactionFee      uint64                `json:"transactionFee"`
	Fee                 FeeCharged            `json:"fee"`
	Transfers           []types.AccountAmount `json:"transferList,omitempty"`
	CreatedAccount      types.AccountID       `json:"createdAccountID,omitempty"`
	// Verifications lists the signature lookup of the transaction, sorted by
	// key bytes.
	Verifications []signature.Verification `json:"verifications,omitempty"`
}

// SingleTransactionRecord is everything emitted for one user transaction.
type SingleTransactionRecord struct {
	Transaction []byte              `json:"transaction"`
	Record      TransactionRecord   `json:"record"`
	Children    []TransactionRecord `json:"children,omitempty"`
}

// Builder assembles a SingleTransactionRecord.
type Builder struct {
	contents  []byte
	record    TransactionRecord
	transfers map[types.AccountID]int64
	children  []TransactionRecord
}

// NewBuilder starts a record for contents handled at consensusTime. The
// status defaults to FAIL_INVALID until set.
func NewBuilder(consensusTime time.Time, contents []byte) *Builder {
	return &Builder{
		contents: append([]byte(nil), contents...),
		record: TransactionRecord{
			ConsensusTime:   consensusTime.UTC(),
			TransactionHash: types.TransactionHash(contents),
			Status:          types.ResponseFailInvalid,
		},
		transfers: make(map[types.AccountID]int64),
	}
}

// Transaction sets the identity and memo of the transaction.
func (b *Builder) Transaction(id types.TransactionID, memo string) *Builder {
	b.record.TransactionID = id
	b.record.Memo = memo
	return b
}

// Status sets the record status.
func (b *Builder) Status(code types.ResponseCode) *Builder {
	b.record.Status = code
	return b
}

// CurrentStatus returns the status set so far.
func (b *Builder) CurrentStatus() types.ResponseCode {
	return b.record.Status
}

// Fee records the charged fee.
func (b *Builder) Fee(fee FeeCharged) *Builder {
	b.record.Fee = fee
	b.record.TransactionFee = fee.Total()
	return b
}

// Transfers merges balance changes into the transfer list.
func (b *Builder) Transfers(deltas map[types.AccountID]int64) *Builder {
	for account, amount := range deltas {
		b.transfers[account] += amount
	}
	return b
}

// TransferList merges a transfer list into the record.
func (b *Builder) TransferList(list []types.AccountAmount) *Builder {
	for _, aa := range list {
		b.transfers[aa.Account] += aa.Amount
	}
	return b
}

// CreatedAccount records an account created by the transaction.
func (b *Builder) CreatedAccount(id types.AccountID) *Builder {
	b.record.CreatedAccount = id
	return b
}

// Verifications records the signature lookup.
func (b *Builder) Verifications(v []signature.Verification) *Builder {
	b.record.Verifications = v
	return b
}

// AddChild appends a child record following the parent by one nanosecond per
// child.
func (b *Builder) AddChild(memo string, deltas map[types.AccountID]int64) *Builder {
	n := len(b.children) + 1
	parent := b.record.ConsensusTime
	id := b.record.TransactionID
	id.Nonce = uint32(n)
	b.children = append(b.children, TransactionRecord{
		ConsensusTime:       parent.Add(time.Duration(n)),
		ParentConsensusTime: &parent,
		TransactionID:       id,
		Memo:                memo,
		Status:              types.ResponseSuccess,
		Transfers:           sortTransfers(deltas),
	})
	return b
}

// Build returns the finished record.
func (b *Builder) Build() SingleTransactionRecord {
	rec := b.record
	rec.Transfers = sortTransfers(b.transfers)
	return SingleTransactionRecord{
		Transaction: b.contents,
		Record:      rec,
		Children:    append([]TransactionRecord(nil), b.children...),
	}
}

func sortTransfers(deltas map[types.AccountID]int64) []types.AccountAmount {
	out := make([]types.AccountAmount, 0, len(deltas))
	for account, amount := range deltas {
		if amount != 0 {
			out = append(out, types.AccountAmount{Account: account, Amount: amount})
		}
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}
