package handle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ledgernode/config"
	"ledgernode/core/dedupe"
	"ledgernode/core/dispatch"
	"ledgernode/core/hooks"
	"ledgernode/core/prehandle"
	"ledgernode/core/records"
	"ledgernode/core/signature"
	"ledgernode/core/solvency"
	"ledgernode/core/state"
	"ledgernode/core/types"
	"ledgernode/native/fees"
	"ledgernode/observability"
	"ledgernode/observability/logging"
)

// txn is the handling state of one user transaction.
type txn struct {
	ctx       context.Context
	tx        *types.PlatformTransaction
	creatorID types.NodeID
	at        time.Time
	snap      *config.Snapshot
	creator   types.NodeInfo
	result    *prehandle.Result
	body      *types.TransactionBody
	payerKey  types.Key
	sp        *state.Savepoint
	dual      *state.DualState
	builder   *records.Builder
	lookup    *signature.Lookup
	span      trace.Span

	fees    fees.Fees
	charged fees.Charged
	path    string
	outcome dispatch.OutcomeKind
}

func (t *txn) status(code types.ResponseCode) {
	t.builder.Status(code)
}

// handleTransaction runs the whole pipeline for one user transaction. It
// always returns a record. When handling itself panics, sp is rolled back and
// the record reports FAIL_INVALID with no fee.
func (w *Workflow) handleTransaction(ctx context.Context, sp *state.Savepoint, dual *state.DualState, creatorID types.NodeID, tx *types.PlatformTransaction) (rec records.SingleTransactionRecord) {
	ctx, span := w.tracer.Start(ctx, "handle.transaction", trace.WithAttributes(
		attribute.Int64("creator", int64(creatorID)),
		attribute.String("consensus_time", tx.ConsensusTime.UTC().Format(time.RFC3339Nano)),
	))
	defer span.End()

	t := &txn{
		ctx:       ctx,
		tx:        tx,
		creatorID: creatorID,
		at:        tx.ConsensusTime.UTC(),
		snap:      w.config.Current(),
		sp:        sp,
		dual:      dual,
		builder:   records.NewBuilder(tx.ConsensusTime, tx.Contents),
		span:      span,
		outcome:   dispatch.OutcomeSuccess,
	}
	defer func() {
		if r := recover(); r != nil {
			sp.Rollback()
			w.logger.Error("transaction handling panicked",
				slog.Int64("node", int64(creatorID)),
				slog.Any("panic", r))
			b := records.NewBuilder(tx.ConsensusTime, tx.Contents).Status(types.ResponseFailInvalid)
			if t.body != nil {
				b.Transaction(t.body.TransactionID, t.body.Memo)
			}
			rec = b.Build()
			observability.Handle().RecordStatus(types.ResponseFailInvalid.String())
		}
	}()

	w.throttle.Refresh(t.snap)
	w.process(t)
	w.finalize(t)
	rec = t.builder.Build()
	span.SetAttributes(attribute.String("status", rec.Record.Status.String()))
	return rec
}

// process walks the precheck gate, signature reconciliation and dispatch,
// stopping at the first stage that settles the transaction.
func (w *Workflow) process(t *txn) {
	g := t.snap.Global
	creator, err := prehandle.CreatorInfo(g, t.creatorID)
	if err != nil {
		w.logger.Warn("event creator not in address book", slog.Any("error", err))
		t.status(types.ResponseInvalidNodeAccount)
		return
	}
	t.creator = creator

	t.result = w.resolvePreHandle(t)
	if t.result.Body != nil {
		t.body = t.result.Body
		t.builder.Transaction(t.body.TransactionID, t.body.Memo)
		t.span.SetAttributes(attribute.String("txid", t.body.TransactionID.String()))
	}

	feeCtx := &dispatch.FeeContext{View: t.sp.Manager, Body: t.body, Config: t.snap, CongestionMultiplier: 1}
	if t.body != nil {
		feeCtx.CongestionMultiplier = w.throttle.CongestionMultiplier(t.body.Functionality(), t.at)
	}
	t.fees, err = w.dispatcher.DispatchComputeFees(feeCtx)
	if err != nil {
		w.logger.Error("fee computation failed", slog.Any("error", err))
		t.outcome = dispatch.OutcomeSystemFailure
		t.status(types.ResponseFailInvalid)
		return
	}

	switch t.result.Status {
	case prehandle.NodeDueDiligenceFailure:
		w.chargeNode(t, t.fees.OnlyNetworkFee(), "due_diligence")
		t.status(t.result.ResponseCode)
		return
	case prehandle.UnknownFailure:
		t.outcome = dispatch.OutcomeSystemFailure
		t.status(types.ResponseFailInvalid)
		return
	case prehandle.PreHandleFailure:
		w.chargePayer(t, t.fees.WithoutServiceFee(), "precheck")
		t.status(t.result.ResponseCode)
		return
	}

	if !w.precheck(t) {
		return
	}
	if !w.reconcileSignatures(t) {
		return
	}
	w.dispatch(t)
}

// resolvePreHandle takes the cached pre-handle result for the transaction
// from the arena and recomputes it when it is missing, failed or stale.
func (w *Workflow) resolvePreHandle(t *txn) *prehandle.Result {
	res, _ := w.arena.Take(prehandle.KeyOf(t.creator.ID, t.tx))
	if recompute, reason := res.NeedsRecompute(t.snap.Version); recompute {
		observability.Handle().RecordRecompute(reason)
		w.logger.Debug("recomputing pre-handle", slog.String("reason", reason))
		res = w.prehandle.PreHandle(t.ctx, t.sp.Manager, t.creator, t.tx)
	}
	return res
}

// precheck runs the short-circuiting payer checks. It reports false once the
// transaction is settled.
func (w *Workflow) precheck(t *txn) bool {
	body := t.body
	g := t.snap.Global

	switch w.dedupe.HasDuplicate(body.TransactionID, t.creator.ID) {
	case dedupe.SameNode:
		w.chargeNode(t, t.fees.WithoutNodeFee(), "duplicate_same_node")
		t.status(types.ResponseDuplicateTransaction)
		return false
	case dedupe.OtherNode:
		w.chargePayer(t, t.fees.WithoutServiceFee(), "duplicate_other_node")
		t.status(types.ResponseDuplicateTransaction)
		return false
	}

	if code := checkTimeBox(body, t.at, g.Transactions); code != types.ResponseOK {
		w.chargePayer(t, t.fees.OnlyNetworkFee(), "time_box")
		t.status(code)
		return false
	}

	payer, err := w.solvency.GetPayerAccount(t.sp.Manager, body.TransactionID.Payer)
	if err != nil {
		return w.rejectPayer(t, err, "payer")
	}
	if err := w.solvency.CheckSolvency(body, payer, t.fees); err != nil {
		return w.rejectPayer(t, err, "solvency")
	}

	t.payerKey = payer.Key

	fn := body.Functionality()
	if !w.authorizer.IsAuthorized(g, payer.ID, fn) {
		w.chargePayer(t, t.fees.WithoutServiceFee(), "authorization")
		t.status(types.ResponseUnauthorized)
		return false
	}
	if code, denied := w.authorizer.HasPrivilegedAuthorization(g, payer.ID, body).ResponseCode(); denied {
		w.chargePayer(t, t.fees.WithoutServiceFee(), "authorization")
		t.status(code)
		return false
	}
	return true
}

func (w *Workflow) rejectPayer(t *txn, err error, path string) bool {
	code, typed := solvency.ResponseCodeOf(err)
	if !typed {
		w.logger.Error("payer lookup failed", slog.Any("error", err))
		t.outcome = dispatch.OutcomeSystemFailure
		t.status(types.ResponseFailInvalid)
		return false
	}
	w.chargePayer(t, t.fees.WithoutServiceFee(), path)
	t.status(code)
	return false
}

// checkTimeBox verifies that consensus time falls inside the declared
// validity window.
func checkTimeBox(body *types.TransactionBody, at time.Time, cfg config.Transactions) types.ResponseCode {
	duration := body.ValidDurationSeconds
	if duration < cfg.MinValidDurationSecs || duration > cfg.MaxValidDurationSecs {
		return types.ResponseInvalidTransactionDuration
	}
	start := body.TransactionID.ValidStart()
	if start.After(at) {
		return types.ResponseInvalidTransactionStart
	}
	if !at.Before(start.Add(body.ValidDuration())) {
		return types.ResponseTransactionExpired
	}
	return types.ResponseOK
}

// dispatch charges the full fee, runs the business logic in a nested
// savepoint and refunds what the outcome does not owe.
func (w *Workflow) dispatch(t *txn) {
	if !w.chargePayer(t, t.fees, "dispatch") {
		return
	}

	hctx := dispatch.NewHandleContext(dispatch.HandleParams{
		Ctx:           t.ctx,
		Body:          t.body,
		ConsensusTime: t.at,
		Config:        t.snap,
		Creator:       t.creator,
		Store:         t.sp,
		Lookup:        t.lookup,
		DualState:     t.dual,
	})
	out := dispatch.Execute(w.dispatcher, hctx)
	t.outcome = out.Kind
	fn := t.body.Functionality().String()
	observability.Handle().RecordDispatch(fn, out.Kind.String())

	switch out.Kind {
	case dispatch.OutcomeSuccess:
		effects := hctx.Effects()
		t.builder.Transfers(effects.Transfers).CreatedAccount(effects.CreatedAccount)
		for _, child := range effects.Children {
			t.builder.AddChild(child.Memo, child.Transfers)
		}
		t.status(types.ResponseSuccess)
		if code := w.sysFiles.HandleTxBody(t.sp.Manager, t.body); code != types.ResponseOK && code != types.ResponseSuccess {
			w.logger.Info("system file update not applied", slog.String("status", code.String()))
		}
		w.dualUpdates.HandleTxBody(t.dual, t.body)
	case dispatch.OutcomeBusinessFailure:
		w.logger.Debug("dispatch rejected",
			slog.String("txid", t.body.TransactionID.String()),
			slog.String("status", out.Code.String()),
			logging.MaskField("memo", t.body.Memo),
			slog.Any("error", out.Err))
		w.refund(t, fees.Fees{Service: t.charged.Service})
		t.status(out.Code)
	default:
		w.logger.Error("dispatch failed unexpectedly",
			slog.String("txid", t.body.TransactionID.String()),
			slog.String("functionality", fn),
			slog.Any("error", out.Err))
		w.refund(t, fees.Fees{Node: t.charged.Node, Network: t.charged.Network, Service: t.charged.Service})
		t.status(types.ResponseFailInvalid)
	}
}

// finalize runs the consensus time hooks, updates the throttles and the
// duplicate cache and completes the record.
func (w *Workflow) finalize(t *txn) {
	w.runHooks(t)

	if t.body != nil {
		w.throttle.TrackTxn(t.body.Functionality(), t.at)
	}

	t.builder.Fee(records.FeeCharged{
		Payer:   t.charged.Payer,
		Node:    t.charged.Node,
		Network: t.charged.Network,
		Service: t.charged.Service,
	}).TransferList(t.charged.Transfers)
	if t.lookup != nil {
		t.builder.Verifications(t.lookup.Entries())
	}

	status := t.builder.CurrentStatus()
	metrics := observability.Handle()
	metrics.RecordStatus(status.String())
	metrics.RecordFee("node", t.path, t.charged.Node)
	metrics.RecordFee("network", t.path, t.charged.Network)
	metrics.RecordFee("service", t.path, t.charged.Service)

	if t.body != nil && t.creator.Account != 0 {
		expiry := t.body.TransactionID.ValidStart().Add(t.body.ValidDuration())
		if expiry.Before(t.at) {
			expiry = t.at
		}
		w.dedupe.Add(t.body.TransactionID, t.creator.ID, dedupe.Receipt{
			Status:        status,
			ConsensusTime: t.at,
		}, expiry)
	}
	w.logger.Debug("transaction handled",
		slog.String("status", status.String()),
		slog.String("outcome", t.outcome.String()),
		slog.Uint64("fee", t.charged.Total()))
}

// runHooks gives every consensus time hook a nested savepoint. A failing hook
// is rolled back on its own and never affects the transaction.
func (w *Workflow) runHooks(t *txn) {
	for _, hook := range w.hooks {
		nested, err := t.sp.Begin()
		if err != nil {
			w.logger.Error("hook savepoint", slog.String("hook", hook.Name()), slog.Any("error", err))
			return
		}
		hctx := &hooks.Context{Store: nested, ConsensusTime: t.at, Config: t.snap.Global}
		if err := runHook(hook, hctx); err != nil {
			nested.Rollback()
			w.logger.Error("consensus time hook failed", slog.String("hook", hook.Name()), slog.Any("error", err))
			continue
		}
		if err := nested.Commit(); err != nil {
			w.logger.Error("hook commit", slog.String("hook", hook.Name()), slog.Any("error", err))
			continue
		}
		for _, child := range hctx.Children() {
			t.builder.AddChild(child.Memo, child.Transfers)
		}
	}
}

func runHook(hook hooks.ConsensusTimeHook, ctx *hooks.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook %s panicked: %v", hook.Name(), r)
		}
	}()
	return hook.Process(ctx)
}
