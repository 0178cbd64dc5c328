package dispatch

import (
	"errors"
	"fmt"

	"ledgernode/core/types"
)

// HandleError is the typed failure business logic returns to reject a
// transaction. Its code becomes the record status.
type HandleError struct {
	Code types.ResponseCode
	Msg  string
}

func (e *HandleError) Error() string {
	if e.Msg == "" {
		return "handle: " + e.Code.String()
	}
	return fmt.Sprintf("handle: %s: %s", e.Code, e.Msg)
}

// NewHandleError returns a typed handle failure.
func NewHandleError(code types.ResponseCode, format string, args ...any) *HandleError {
	return &HandleError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Validate returns a typed handle failure with code unless ok holds.
func Validate(ok bool, code types.ResponseCode) error {
	if ok {
		return nil
	}
	return &HandleError{Code: code}
}

// PreCheckError is a typed failure raised while declaring keys or
// pre-validating a body. It is attributable to the payer.
type PreCheckError struct {
	Code types.ResponseCode
}

func (e *PreCheckError) Error() string {
	return "precheck: " + e.Code.String()
}

// PreCheck returns a typed pre-check failure with code unless ok holds.
func PreCheck(ok bool, code types.ResponseCode) error {
	if ok {
		return nil
	}
	return &PreCheckError{Code: code}
}

// ResponseCodeOf extracts the code carried by a typed failure.
func ResponseCodeOf(err error) (types.ResponseCode, bool) {
	var handleErr *HandleError
	if errors.As(err, &handleErr) {
		return handleErr.Code, true
	}
	var preErr *PreCheckError
	if errors.As(err, &preErr) {
		return preErr.Code, true
	}
	return 0, false
}
