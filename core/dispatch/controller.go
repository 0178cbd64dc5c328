package dispatch

import (
	"errors"
	"fmt"

	"ledgernode/core/types"
)

// OutcomeKind tags the result of a dispatch.
type OutcomeKind uint8

const (
	OutcomeSuccess OutcomeKind = iota
	// OutcomeBusinessFailure is a typed rejection by business logic.
	OutcomeBusinessFailure
	// OutcomeSystemFailure is any untyped error or panic.
	OutcomeSystemFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeBusinessFailure:
		return "business_failure"
	case OutcomeSystemFailure:
		return "system_failure"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", uint8(k))
	}
}

// Outcome is the tagged result of Execute.
type Outcome struct {
	Kind OutcomeKind
	Code types.ResponseCode
	Err  error
}

// Success reports whether the dispatch committed.
func (o Outcome) Success() bool {
	return o.Kind == OutcomeSuccess
}

// ErrNoStore is returned when a handle context has no writable store.
var ErrNoStore = errors.New("dispatch: handle context has no store")

// Execute runs the handler for ctx inside a nested savepoint of its store.
// Writes are committed on success and discarded on any failure, together with
// the record side effects the handler noted. Panics become system failures.
func Execute(d Dispatcher, ctx *HandleContext) (out Outcome) {
	if ctx.store == nil {
		return Outcome{Kind: OutcomeSystemFailure, Code: types.ResponseFailInvalid, Err: ErrNoStore}
	}
	sp, err := ctx.store.Begin()
	if err != nil {
		return Outcome{Kind: OutcomeSystemFailure, Code: types.ResponseFailInvalid, Err: err}
	}
	restore := ctx.bind(sp)
	defer func() {
		restore()
		if r := recover(); r != nil {
			sp.Rollback()
			ctx.resetEffects()
			out = Outcome{Kind: OutcomeSystemFailure, Code: types.ResponseFailInvalid, Err: fmt.Errorf("dispatch: panic: %v", r)}
		}
	}()

	if err := d.DispatchHandle(ctx); err != nil {
		sp.Rollback()
		ctx.resetEffects()
		if code, typed := ResponseCodeOf(err); typed {
			return Outcome{Kind: OutcomeBusinessFailure, Code: code, Err: err}
		}
		return Outcome{Kind: OutcomeSystemFailure, Code: types.ResponseFailInvalid, Err: err}
	}
	if err := sp.Commit(); err != nil {
		ctx.resetEffects()
		return Outcome{Kind: OutcomeSystemFailure, Code: types.ResponseFailInvalid, Err: err}
	}
	return Outcome{Kind: OutcomeSuccess, Code: types.ResponseSuccess}
}
