package handle

import (
	"log/slog"

	"ledgernode/core/dispatch"
	"ledgernode/core/signature"
	"ledgernode/core/types"
)

// reconcileSignatures makes sure every key the business logic needs has a
// verification. Keys the pre-handle pass already verified are reused; keys
// discovered now are expanded and verified, and the lookup merges both. A
// failed or missing required key settles the transaction before dispatch;
// optional keys never do.
func (w *Workflow) reconcileSignatures(t *txn) bool {
	body := t.body
	pctx := dispatch.NewPreHandleContext(t.sp.Manager, body, t.snap)
	if err := w.dispatcher.DispatchPreHandle(pctx); err != nil {
		code, typed := dispatch.ResponseCodeOf(err)
		if !typed {
			w.logger.Error("pre-handle dispatch failed during handling",
				slog.String("txid", body.TransactionID.String()),
				slog.Any("error", err))
			t.outcome = dispatch.OutcomeSystemFailure
			t.status(types.ResponseFailInvalid)
			return false
		}
		w.chargePayer(t, t.fees.WithoutServiceFee(), "precheck")
		t.status(code)
		return false
	}

	required := pctx.RequiredKeys()
	optional := pctx.OptionalKeys()
	declared := make([]types.Key, 0, len(required)+len(optional)+1)
	declared = append(declared, t.payerKey)
	declared = append(declared, required...)
	declared = append(declared, optional...)

	t.lookup = signature.NewLookup(t.ctx, t.snap.Global.SignatureTimeout())
	t.lookup.AddAll(t.result.Verifications)
	var newly []types.Key
	for _, key := range declared {
		if len(key) > 0 && !t.result.HasVerification(key) {
			newly = append(newly, key)
		}
	}
	if len(newly) > 0 {
		expanded := make(map[string]signature.Expanded, len(newly))
		w.expander.Expand(newly, t.result.Transaction.SigMap, expanded)
		t.lookup.AddAll(w.verifier.Verify(t.ctx, t.result.Transaction.BodyBytes, expanded))
	}
	// Declared keys without a matching signature pair still show up in the
	// record, as failed.
	for _, key := range declared {
		if len(key) > 0 && !t.lookup.Has(key) {
			t.lookup.Add(signature.Resolved(signature.Failed(key)))
		}
	}

	if !t.lookup.VerificationFor(t.payerKey).Passed {
		w.chargeNode(t, t.fees.OnlyNetworkFee(), "due_diligence")
		t.status(types.ResponseInvalidPayerSignature)
		return false
	}
	for _, key := range required {
		if !t.lookup.VerificationFor(key).Passed {
			w.chargePayer(t, t.fees.WithoutServiceFee(), "signature")
			t.status(types.ResponseInvalidSignature)
			return false
		}
	}
	return true
}
