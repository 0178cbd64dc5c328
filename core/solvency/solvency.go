package solvency

import (
	"errors"
	"fmt"

	"ledgernode/core/state"
	"ledgernode/core/types"
	"ledgernode/native/fees"
)

// InsolvencyError is a payer precheck failure carrying its record status.
type InsolvencyError struct {
	Code   types.ResponseCode
	Payer  types.AccountID
	Needed uint64
	Has    uint64
}

func (e *InsolvencyError) Error() string {
	return fmt.Sprintf("solvency: %s: payer %s needs %d, has %d", e.Code, e.Payer, e.Needed, e.Has)
}

// Checker resolves payers and checks they can afford their fees.
type Checker struct{}

// GetPayerAccount returns the live payer account or a PAYER_ACCOUNT_NOT_FOUND
// failure.
func (Checker) GetPayerAccount(m *state.Manager, id types.AccountID) (*types.Account, error) {
	account, err := m.LiveAccount(id)
	if errors.Is(err, state.ErrAccountNotFound) {
		return nil, &InsolvencyError{Code: types.ResponsePayerAccountNotFound, Payer: id}
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// CheckSolvency verifies that the body offers at least the computed fee and
// that the payer can cover it.
func (Checker) CheckSolvency(body *types.TransactionBody, payer *types.Account, f fees.Fees) error {
	total := f.TotalFee()
	if total > body.MaxFee {
		return &InsolvencyError{Code: types.ResponseInsufficientTxFee, Payer: payer.ID, Needed: total, Has: body.MaxFee}
	}
	if payer.Balance < total {
		return &InsolvencyError{Code: types.ResponseInsufficientPayerBalance, Payer: payer.ID, Needed: total, Has: payer.Balance}
	}
	return nil
}

// ResponseCodeOf extracts the status of a solvency failure.
func ResponseCodeOf(err error) (types.ResponseCode, bool) {
	var insolvent *InsolvencyError
	if errors.As(err, &insolvent) {
		return insolvent.Code, true
	}
	return 0, false
}
