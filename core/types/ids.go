package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AccountID identifies a ledger account. Shard and realm are always zero.
type AccountID uint64

// String renders the account in shard.realm.num form.
func (id AccountID) String() string {
	return fmt.Sprintf("0.0.%d", uint64(id))
}

// ParseAccountID accepts either "0.0.N" or a bare number.
func ParseAccountID(raw string) (AccountID, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "0.0.")
	num, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid account id %q: %w", raw, err)
	}
	return AccountID(num), nil
}

// NodeID identifies a consensus node in the address book.
type NodeID uint64

// FileID identifies a file entity. System files live below 1000.
type FileID uint64

func (id FileID) String() string {
	return fmt.Sprintf("0.0.%d", uint64(id))
}

// NodeInfo binds a node to the account that receives its node fees.
type NodeInfo struct {
	ID      NodeID    `json:"id" toml:"ID"`
	Account AccountID `json:"account" toml:"Account"`
}

// TransactionID uniquely identifies a user transaction. It is comparable and
// can be used directly as a map key.
type TransactionID struct {
	Payer             AccountID `json:"accountID"`
	ValidStartSeconds uint64    `json:"validStartSeconds"`
	ValidStartNanos   uint32    `json:"validStartNanos"`
	Nonce             uint32    `json:"nonce,omitempty"`
}

// ValidStart returns the beginning of the transaction's validity window.
func (id TransactionID) ValidStart() time.Time {
	return time.Unix(int64(id.ValidStartSeconds), int64(id.ValidStartNanos)).UTC()
}

func (id TransactionID) String() string {
	s := fmt.Sprintf("%s@%d.%09d", id.Payer, id.ValidStartSeconds, id.ValidStartNanos)
	if id.Nonce != 0 {
		s += fmt.Sprintf("/%d", id.Nonce)
	}
	return s
}

// NewTransactionID builds an id whose validity starts at the supplied instant.
func NewTransactionID(payer AccountID, validStart time.Time) TransactionID {
	return TransactionID{
		Payer:             payer,
		ValidStartSeconds: uint64(validStart.Unix()),
		ValidStartNanos:   uint32(validStart.Nanosecond()),
	}
}

// ParseTransactionID accepts the form produced by TransactionID.String:
// "0.0.N@seconds.nanos" with an optional "/nonce" suffix.
func ParseTransactionID(raw string) (TransactionID, error) {
	var id TransactionID
	payer, rest, ok := strings.Cut(strings.TrimSpace(raw), "@")
	if !ok {
		return id, fmt.Errorf("invalid transaction id %q: missing valid start", raw)
	}
	account, err := ParseAccountID(payer)
	if err != nil {
		return id, err
	}
	id.Payer = account
	if start, nonce, found := strings.Cut(rest, "/"); found {
		n, err := strconv.ParseUint(nonce, 10, 32)
		if err != nil {
			return id, fmt.Errorf("invalid transaction id %q: %w", raw, err)
		}
		id.Nonce = uint32(n)
		rest = start
	}
	secs, nanos, _ := strings.Cut(rest, ".")
	s, err := strconv.ParseUint(secs, 10, 64)
	if err != nil {
		return id, fmt.Errorf("invalid transaction id %q: %w", raw, err)
	}
	id.ValidStartSeconds = s
	if nanos != "" {
		n, err := strconv.ParseUint(nanos, 10, 32)
		if err != nil || n >= 1_000_000_000 {
			return id, fmt.Errorf("invalid transaction id %q: bad nanos", raw)
		}
		id.ValidStartNanos = uint32(n)
	}
	return id, nil
}
