package accounts

import (
	"errors"

	"ledgernode/core/dispatch"
	"ledgernode/core/state"
	"ledgernode/core/types"
	"ledgernode/crypto"
)

// CreateHandler opens a new account funded from the payer.
type CreateHandler struct{}

func (CreateHandler) PreHandle(ctx *dispatch.PreHandleContext) error {
	op := ctx.Body.CryptoCreate
	if len(op.Key) == 0 {
		return &dispatch.PreCheckError{Code: types.ResponseKeyRequired}
	}
	if _, err := crypto.ParseKey(op.Key); err != nil {
		return &dispatch.PreCheckError{Code: types.ResponseBadEncoding}
	}
	if max := ctx.Config.Global.Transactions.MaxMemoBytes; max > 0 && len(op.Memo) > max {
		return &dispatch.PreCheckError{Code: types.ResponseMemoTooLong}
	}
	if op.ReceiverSigRequired {
		ctx.RequireKey(op.Key)
	}
	return nil
}

func (CreateHandler) Handle(ctx *dispatch.HandleContext) error {
	op := ctx.Body.CryptoCreate
	if op.ReceiverSigRequired && !ctx.IsSigned(op.Key) {
		return dispatch.NewHandleError(types.ResponseInvalidSignature, "new account key did not sign")
	}
	sp := ctx.Store()
	id, err := nextFreeAccount(sp.Manager, ctx.Config.Global.Ledger.FirstUserEntity)
	if err != nil {
		return err
	}
	if op.InitialBalance > 0 {
		if err := sp.Debit(ctx.Payer, op.InitialBalance); err != nil {
			if errors.Is(err, state.ErrInsufficientBalance) {
				return dispatch.NewHandleError(types.ResponseInsufficientPayerBalance, "initial balance %d", op.InitialBalance)
			}
			return err
		}
	}
	if err := sp.PutAccount(&types.Account{
		ID:                  id,
		Key:                 append(types.Key(nil), op.Key...),
		Balance:             op.InitialBalance,
		ReceiverSigRequired: op.ReceiverSigRequired,
		Memo:                op.Memo,
	}); err != nil {
		return err
	}
	if op.InitialBalance > 0 {
		ctx.NoteCredit(ctx.Payer, -int64(op.InitialBalance))
		ctx.NoteCredit(id, int64(op.InitialBalance))
	}
	ctx.SetCreatedAccount(id)
	return nil
}

// nextFreeAccount allocates entity numbers until one is not taken by an
// account seeded outside the allocator.
func nextFreeAccount(m *state.Manager, floor uint64) (types.AccountID, error) {
	for {
		num, err := m.NextEntityNumber(floor)
		if err != nil {
			return 0, err
		}
		existing, err := m.GetAccount(types.AccountID(num))
		if err != nil {
			return 0, err
		}
		if existing == nil {
			return types.AccountID(num), nil
		}
	}
}
