package prehandle

import (
	"fmt"

	"ledgernode/core/signature"
	"ledgernode/core/types"
)

// Status classifies a pre-handle outcome.
type Status uint8

const (
	SoFarSoGood Status = iota
	// PreHandleFailure is a payer-attributable rejection found before
	// consensus. It is recomputed during handling since state may have moved.
	PreHandleFailure
	// NodeDueDiligenceFailure blames the submitting node.
	NodeDueDiligenceFailure
	// UnknownFailure is an unexpected error during pre-handle.
	UnknownFailure
)

func (s Status) String() string {
	switch s {
	case SoFarSoGood:
		return "SO_FAR_SO_GOOD"
	case PreHandleFailure:
		return "PRE_HANDLE_FAILURE"
	case NodeDueDiligenceFailure:
		return "NODE_DUE_DILIGENCE_FAILURE"
	case UnknownFailure:
		return "UNKNOWN_FAILURE"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Result caches the validation of one platform transaction.
type Result struct {
	Status       Status
	ResponseCode types.ResponseCode

	Transaction *types.Transaction
	Body        *types.TransactionBody
	Payer       types.AccountID
	PayerKey    types.Key
	Creator     types.NodeInfo

	// RequiredKeys and OptionalKeys are the non-payer keys declared by the
	// business logic.
	RequiredKeys []types.Key
	OptionalKeys []types.Key
	// Verifications holds one future per expanded key, indexed by key bytes.
	Verifications map[string]*signature.Future

	ConfigVersion uint64
}

// IsStale reports whether the result was computed under another
// configuration version.
func (r *Result) IsStale(version uint64) bool {
	return r.ConfigVersion != version
}

// NeedsRecompute reports whether handling must rerun pre-handle before using
// the result.
func (r *Result) NeedsRecompute(version uint64) (bool, string) {
	switch {
	case r == nil:
		return true, "missing"
	case r.Status == PreHandleFailure:
		return true, "pre_handle_failure"
	case r.Status == UnknownFailure:
		return true, "unknown_failure"
	case r.IsStale(version):
		return true, "stale_config"
	default:
		return false, ""
	}
}

// HasVerification reports whether a verification was started for key.
func (r *Result) HasVerification(key types.Key) bool {
	_, ok := r.Verifications[string(key)]
	return ok
}

func dueDiligence(code types.ResponseCode, version uint64) *Result {
	return &Result{Status: NodeDueDiligenceFailure, ResponseCode: code, ConfigVersion: version}
}
