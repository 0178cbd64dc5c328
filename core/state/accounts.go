package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"ledgernode/core/types"
)

var (
	// ErrAccountNotFound is returned when an account does not exist or has been
	// deleted.
	ErrAccountNotFound = errors.New("state: account not found")
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	// ErrBalanceOverflow is returned when a credit overflows the balance.
	ErrBalanceOverflow = errors.New("state: balance overflow")

	accountPrefix    = []byte("account:")
	accountIndexKey  = []byte("account-index")
	entityCounterKey = []byte("entity/next")
)

func accountKey(id types.AccountID) []byte {
	buf := make([]byte, len(accountPrefix)+8)
	copy(buf, accountPrefix)
	binary.BigEndian.PutUint64(buf[len(accountPrefix):], uint64(id))
	return buf
}

// GetAccount returns the stored account, including deleted ones. A nil account
// is returned when nothing is stored under the identifier.
func (m *Manager) GetAccount(id types.AccountID) (*types.Account, error) {
	account := new(types.Account)
	ok, err := m.KVGet(accountKey(id), account)
	if err != nil {
		return nil, fmt.Errorf("state: load account %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	return account, nil
}

// LiveAccount returns the account if it exists and is not deleted.
func (m *Manager) LiveAccount(id types.AccountID) (*types.Account, error) {
	account, err := m.GetAccount(id)
	if err != nil {
		return nil, err
	}
	if account == nil || account.Deleted {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return account, nil
}

// PutAccount stores the account and records its identifier in the account
// index.
func (m *Manager) PutAccount(account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: account must not be nil")
	}
	if account.ID == 0 {
		return fmt.Errorf("state: account id must not be zero")
	}
	if err := m.KVPut(accountKey(account.ID), account); err != nil {
		return err
	}
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], uint64(account.ID))
	return m.KVAppend(accountIndexKey, raw[:])
}

// AccountIDs lists every account ever stored, in ascending order.
func (m *Manager) AccountIDs() ([]types.AccountID, error) {
	var raw [][]byte
	if err := m.KVGetList(accountIndexKey, &raw); err != nil {
		return nil, err
	}
	ids := make([]types.AccountID, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			return nil, fmt.Errorf("state: malformed account index entry")
		}
		ids = append(ids, types.AccountID(binary.BigEndian.Uint64(entry)))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Balance returns the balance of a live account.
func (m *Manager) Balance(id types.AccountID) (uint64, error) {
	account, err := m.LiveAccount(id)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Credit adds amount to a live account.
func (m *Manager) Credit(id types.AccountID, amount uint64) error {
	account, err := m.LiveAccount(id)
	if err != nil {
		return err
	}
	if account.Balance > math.MaxUint64-amount {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, id)
	}
	account.Balance += amount
	return m.PutAccount(account)
}

// Debit subtracts amount from a live account.
func (m *Manager) Debit(id types.AccountID, amount uint64) error {
	account, err := m.LiveAccount(id)
	if err != nil {
		return err
	}
	if account.Balance < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, id, account.Balance, amount)
	}
	account.Balance -= amount
	return m.PutAccount(account)
}

// Transfer moves amount between two live accounts.
func (m *Manager) Transfer(from, to types.AccountID, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	if err := m.Debit(from, amount); err != nil {
		return err
	}
	return m.Credit(to, amount)
}

// NextEntityNumber allocates the next entity number, never returning a value
// below floor.
func (m *Manager) NextEntityNumber(floor uint64) (uint64, error) {
	var next uint64
	if _, err := m.KVGet(entityCounterKey, &next); err != nil {
		return 0, err
	}
	if next < floor {
		next = floor
	}
	if err := m.KVPut(entityCounterKey, next+1); err != nil {
		return 0, err
	}
	return next, nil
}
