package handle

import (
	"log/slog"

	"ledgernode/core/dispatch"
	"ledgernode/core/types"
	"ledgernode/native/fees"
)

func (w *Workflow) charger(t *txn) fees.Charger {
	return fees.Charger{Funding: t.snap.Global.Ledger.FundingAccount}
}

// chargePayer charges the transaction payer. The node share goes to the
// submitting node's account.
func (w *Workflow) chargePayer(t *txn, f fees.Fees, path string) bool {
	if t.body == nil {
		return false
	}
	return w.charge(t, t.body.TransactionID.Payer, f, path)
}

// chargeNode charges the submitting node's own account.
func (w *Workflow) chargeNode(t *txn, f fees.Fees, path string) bool {
	if t.creator.Account == 0 {
		return false
	}
	return w.charge(t, t.creator.Account, f, path)
}

// charge moves the fee inside a nested savepoint so a partial failure leaves
// no trace. Payers that cannot be charged at all are logged and skipped;
// only the full dispatch charge failing settles the transaction.
func (w *Workflow) charge(t *txn, payer types.AccountID, f fees.Fees, path string) bool {
	nested, err := t.sp.Begin()
	if err != nil {
		w.logger.Error("charge savepoint", slog.Any("error", err))
		return w.chargeFailed(t, path)
	}
	charged, err := w.charger(t).Charge(nested.Manager, payer, t.creator.Account, f)
	if err != nil {
		nested.Rollback()
		w.logger.Debug("fee not charged",
			slog.String("payer", payer.String()),
			slog.String("path", path),
			slog.Any("error", err))
		return w.chargeFailed(t, path)
	}
	if err := nested.Commit(); err != nil {
		w.logger.Error("charge commit", slog.Any("error", err))
		return w.chargeFailed(t, path)
	}
	t.charged = charged
	t.path = path
	return true
}

func (w *Workflow) chargeFailed(t *txn, path string) bool {
	if path == "dispatch" {
		t.outcome = dispatch.OutcomeSystemFailure
		t.status(types.ResponseFailInvalid)
	}
	return false
}

// refund returns part of the dispatch charge after a failed dispatch.
func (w *Workflow) refund(t *txn, f fees.Fees) {
	if f.IsZero() {
		return
	}
	nested, err := t.sp.Begin()
	if err != nil {
		w.logger.Error("refund savepoint", slog.Any("error", err))
		return
	}
	refunded, err := w.charger(t).Refund(nested.Manager, t.charged, t.creator.Account, f)
	if err != nil {
		nested.Rollback()
		w.logger.Error("refund failed", slog.Any("error", err))
		return
	}
	if err := nested.Commit(); err != nil {
		w.logger.Error("refund commit", slog.Any("error", err))
		return
	}
	t.charged = refunded
}
