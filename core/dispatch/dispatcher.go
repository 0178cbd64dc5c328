package dispatch

import (
	"fmt"

	"ledgernode/config"
	"ledgernode/core/state"
	"ledgernode/core/types"
	"ledgernode/native/fees"
)

// FeeContext carries what fee computation may depend on.
type FeeContext struct {
	View   *state.Manager
	Body   *types.TransactionBody
	Config *config.Snapshot
	// CongestionMultiplier scales every component; zero means one.
	CongestionMultiplier uint64
}

// Dispatcher routes a transaction to the business logic of its
// functionality.
type Dispatcher interface {
	DispatchPreHandle(ctx *PreHandleContext) error
	DispatchHandle(ctx *HandleContext) error
	DispatchComputeFees(ctx *FeeContext) (fees.Fees, error)
}

// Handler is the business logic of one functionality.
type Handler interface {
	// PreHandle validates the body against a read-only view and declares the
	// keys the transaction needs.
	PreHandle(ctx *PreHandleContext) error
	// Handle applies the transaction to the writable store.
	Handle(ctx *HandleContext) error
}

// Registry is a Dispatcher backed by a table of handlers and the fee
// calculator.
type Registry struct {
	handlers   map[types.Functionality]Handler
	calculator fees.Calculator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[types.Functionality]Handler)}
}

// Register installs h for fn, replacing any previous handler.
func (r *Registry) Register(fn types.Functionality, h Handler) *Registry {
	r.handlers[fn] = h
	return r
}

func (r *Registry) handler(body *types.TransactionBody) (Handler, error) {
	if body == nil {
		return nil, &PreCheckError{Code: types.ResponseInvalidTransactionBody}
	}
	h, ok := r.handlers[body.Functionality()]
	if !ok {
		return nil, &PreCheckError{Code: types.ResponseNotSupported}
	}
	return h, nil
}

func (r *Registry) DispatchPreHandle(ctx *PreHandleContext) error {
	h, err := r.handler(ctx.Body)
	if err != nil {
		return err
	}
	return h.PreHandle(ctx)
}

func (r *Registry) DispatchHandle(ctx *HandleContext) error {
	h, err := r.handler(ctx.Body)
	if err != nil {
		return &HandleError{Code: types.ResponseNotSupported}
	}
	return h.Handle(ctx)
}

// DispatchComputeFees prices the body. Bodies without a functionality are
// priced as a plain transfer so penalties can still be charged.
func (r *Registry) DispatchComputeFees(ctx *FeeContext) (fees.Fees, error) {
	if ctx.Config == nil {
		return fees.Fees{}, fmt.Errorf("dispatch: fee context without config")
	}
	fn := types.FunctionalityCryptoTransfer
	if ctx.Body != nil && ctx.Body.Functionality() != types.FunctionalityNone {
		fn = ctx.Body.Functionality()
	}
	return r.calculator.Compute(ctx.Config.Global, fn, ctx.CongestionMultiplier)
}
