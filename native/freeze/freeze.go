package freeze

import (
	"time"

	"ledgernode/core/dispatch"
	"ledgernode/core/types"
)

// Handler validates freeze transactions. The schedule itself lives in the
// dual state and is applied once the transaction commits.
type Handler struct{}

func (Handler) PreHandle(ctx *dispatch.PreHandleContext) error {
	op := ctx.Body.Freeze
	if op.Abort && op.StartSeconds != 0 {
		return &dispatch.PreCheckError{Code: types.ResponseInvalidFreezeTransactionBody}
	}
	if !op.Abort && op.StartSeconds == 0 {
		return &dispatch.PreCheckError{Code: types.ResponseInvalidFreezeTransactionBody}
	}
	return nil
}

func (Handler) Handle(ctx *dispatch.HandleContext) error {
	op := ctx.Body.Freeze
	if op.Abort {
		return dispatch.Validate(op.StartSeconds == 0, types.ResponseInvalidFreezeTransactionBody)
	}
	start := time.Unix(int64(op.StartSeconds), 0)
	return dispatch.Validate(start.After(ctx.ConsensusTime), types.ResponseInvalidFreezeTime)
}

// Register installs the freeze handler.
func Register(r *dispatch.Registry) *dispatch.Registry {
	return r.Register(types.FunctionalityFreeze, Handler{})
}
