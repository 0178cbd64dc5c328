package accounts

import (
	"ledgernode/core/dispatch"
	"ledgernode/core/types"
)

// DeleteHandler marks an account deleted and sweeps its balance. The sweep is
// externalized as a child record.
type DeleteHandler struct{}

func (DeleteHandler) PreHandle(ctx *dispatch.PreHandleContext) error {
	op := ctx.Body.CryptoDelete
	if op.Delete == op.TransferTo {
		return &dispatch.PreCheckError{Code: types.ResponseTransferAccountSameAsDeleteAccount}
	}
	if err := ctx.RequireAccountKey(op.Delete, types.ResponseInvalidAccountID); err != nil {
		return err
	}
	target, err := ctx.View.LiveAccount(op.TransferTo)
	if err != nil {
		return &dispatch.PreCheckError{Code: types.ResponseInvalidAccountID}
	}
	if target.ReceiverSigRequired && op.TransferTo != ctx.Payer {
		ctx.RequireKey(target.Key)
	}
	return nil
}

func (DeleteHandler) Handle(ctx *dispatch.HandleContext) error {
	op := ctx.Body.CryptoDelete
	if err := dispatch.Validate(op.Delete != op.TransferTo, types.ResponseTransferAccountSameAsDeleteAccount); err != nil {
		return err
	}
	if err := dispatch.Validate(uint64(op.Delete) > ctx.Config.Global.Ledger.MaxProtectedEntity, types.ResponseEntityNotAllowedToDelete); err != nil {
		return err
	}
	sp := ctx.Store()
	victim, err := sp.GetAccount(op.Delete)
	if err != nil {
		return err
	}
	if victim == nil {
		return dispatch.NewHandleError(types.ResponseInvalidAccountID, "account %s", op.Delete)
	}
	if victim.Deleted {
		return dispatch.NewHandleError(types.ResponseAccountDeleted, "account %s", op.Delete)
	}
	if op.Delete != ctx.Payer && !ctx.IsSigned(victim.Key) {
		return dispatch.NewHandleError(types.ResponseInvalidSignature, "account %s", op.Delete)
	}
	target, err := sp.GetAccount(op.TransferTo)
	if err != nil {
		return err
	}
	if target == nil || target.Deleted {
		return dispatch.NewHandleError(types.ResponseInvalidAccountID, "transfer account %s", op.TransferTo)
	}
	if target.ReceiverSigRequired && op.TransferTo != ctx.Payer && !ctx.IsSigned(target.Key) {
		return dispatch.NewHandleError(types.ResponseInvalidSignature, "transfer account %s", op.TransferTo)
	}

	swept := victim.Balance
	if err := sp.Transfer(op.Delete, op.TransferTo, swept); err != nil {
		return err
	}
	victim, err = sp.GetAccount(op.Delete)
	if err != nil {
		return err
	}
	victim.Deleted = true
	if err := sp.PutAccount(victim); err != nil {
		return err
	}
	if swept > 0 {
		ctx.AddChildRecord("account sweep", map[types.AccountID]int64{
			op.Delete:     -int64(swept),
			op.TransferTo: int64(swept),
		})
	}
	return nil
}
