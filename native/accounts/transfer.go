package accounts

import (
	"errors"
	"math"

	"ledgernode/core/dispatch"
	"ledgernode/core/state"
	"ledgernode/core/types"
)

// TransferHandler moves tinybars between accounts.
type TransferHandler struct{}

func validateTransferList(list []types.AccountAmount, max int) error {
	if len(list) == 0 {
		return &dispatch.PreCheckError{Code: types.ResponseInvalidAccountAmounts}
	}
	if max > 0 && len(list) > max {
		return &dispatch.PreCheckError{Code: types.ResponseInvalidAccountAmounts}
	}
	seen := make(map[types.AccountID]struct{}, len(list))
	var net int64
	for _, aa := range list {
		if aa.Account == 0 {
			return &dispatch.PreCheckError{Code: types.ResponseInvalidAccountID}
		}
		if _, dup := seen[aa.Account]; dup {
			return &dispatch.PreCheckError{Code: types.ResponseAccountRepeatedInAccountAmounts}
		}
		seen[aa.Account] = struct{}{}
		if aa.Amount == math.MinInt64 {
			return &dispatch.PreCheckError{Code: types.ResponseInvalidAccountAmounts}
		}
		next := net + aa.Amount
		if (aa.Amount > 0 && next < net) || (aa.Amount < 0 && next > net) {
			return &dispatch.PreCheckError{Code: types.ResponseInvalidAccountAmounts}
		}
		net = next
	}
	if net != 0 {
		return &dispatch.PreCheckError{Code: types.ResponseInvalidAccountAmounts}
	}
	return nil
}

func (TransferHandler) PreHandle(ctx *dispatch.PreHandleContext) error {
	op := ctx.Body.CryptoTransfer
	if err := validateTransferList(op.Transfers, ctx.Config.Global.Ledger.TransferListMax); err != nil {
		return err
	}
	for _, aa := range op.Transfers {
		if aa.Amount < 0 {
			if err := ctx.RequireAccountKey(aa.Account, types.ResponseInvalidAccountID); err != nil {
				return err
			}
			continue
		}
		account, err := ctx.View.LiveAccount(aa.Account)
		if err != nil {
			return &dispatch.PreCheckError{Code: types.ResponseInvalidAccountID}
		}
		if account.ReceiverSigRequired && aa.Account != ctx.Payer {
			ctx.RequireKey(account.Key)
		}
	}
	return nil
}

func (TransferHandler) Handle(ctx *dispatch.HandleContext) error {
	op := ctx.Body.CryptoTransfer
	if err := validateTransferList(op.Transfers, ctx.Config.Global.Ledger.TransferListMax); err != nil {
		return &dispatch.HandleError{Code: codeOf(err)}
	}
	sp := ctx.Store()
	for _, aa := range op.Transfers {
		account, err := sp.GetAccount(aa.Account)
		if err != nil {
			return err
		}
		switch {
		case account == nil:
			return dispatch.NewHandleError(types.ResponseInvalidAccountID, "account %s", aa.Account)
		case account.Deleted:
			return dispatch.NewHandleError(types.ResponseAccountDeleted, "account %s", aa.Account)
		}
		needsSig := aa.Amount < 0 || account.ReceiverSigRequired
		if needsSig && aa.Account != ctx.Payer && !ctx.IsSigned(account.Key) {
			return dispatch.NewHandleError(types.ResponseInvalidSignature, "account %s", aa.Account)
		}
	}
	for _, aa := range op.Transfers {
		if aa.Amount >= 0 {
			continue
		}
		if err := sp.Debit(aa.Account, uint64(-aa.Amount)); err != nil {
			if errors.Is(err, state.ErrInsufficientBalance) {
				return dispatch.NewHandleError(types.ResponseInsufficientAccountBalance, "account %s", aa.Account)
			}
			return err
		}
		ctx.NoteCredit(aa.Account, aa.Amount)
	}
	for _, aa := range op.Transfers {
		if aa.Amount <= 0 {
			continue
		}
		if err := sp.Credit(aa.Account, uint64(aa.Amount)); err != nil {
			return err
		}
		ctx.NoteCredit(aa.Account, aa.Amount)
	}
	return nil
}

func codeOf(err error) types.ResponseCode {
	if code, ok := dispatch.ResponseCodeOf(err); ok {
		return code
	}
	return types.ResponseFailInvalid
}
