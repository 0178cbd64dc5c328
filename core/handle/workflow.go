package handle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ledgernode/config"
	"ledgernode/core/authz"
	"ledgernode/core/dedupe"
	"ledgernode/core/dispatch"
	"ledgernode/core/hooks"
	"ledgernode/core/prehandle"
	"ledgernode/core/records"
	"ledgernode/core/signature"
	"ledgernode/core/solvency"
	"ledgernode/core/state"
	"ledgernode/core/sysfiles"
	"ledgernode/core/throttle"
	"ledgernode/core/types"
	"ledgernode/observability"
	"ledgernode/observability/logging"
	ledgerotel "ledgernode/observability/otel"
)

// Params wires the collaborators of the handle workflow. Optional fields fall
// back to defaults in NewWorkflow.
type Params struct {
	Dispatcher dispatch.Dispatcher
	PreHandle  *prehandle.Workflow
	Verifier   *signature.Verifier
	Config     *config.Provider
	Records    *records.BlockRecordManager

	Arena       *prehandle.Arena
	Dedupe      *dedupe.Cache
	Hooks       []hooks.ConsensusTimeHook
	SystemFiles *sysfiles.SystemFileUpdates
	DualUpdates *sysfiles.DualStateUpdates
	Throttle    *throttle.NetworkUtilization
	Tracer      trace.Tracer
	Logger      *slog.Logger
}

// Workflow turns consensus rounds into state changes and records. It is
// driven by a single goroutine; only signature verification runs
// concurrently.
type Workflow struct {
	dispatcher  dispatch.Dispatcher
	prehandle   *prehandle.Workflow
	verifier    *signature.Verifier
	expander    signature.Expander
	config      *config.Provider
	records     *records.BlockRecordManager
	arena       *prehandle.Arena
	dedupe      *dedupe.Cache
	hooks       []hooks.ConsensusTimeHook
	sysFiles    *sysfiles.SystemFileUpdates
	dualUpdates *sysfiles.DualStateUpdates
	throttle    *throttle.NetworkUtilization
	solvency    solvency.Checker
	authorizer  authz.Authorizer
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewWorkflow validates p and returns the workflow.
func NewWorkflow(p Params) (*Workflow, error) {
	switch {
	case p.Dispatcher == nil:
		return nil, errors.New("handle: dispatcher required")
	case p.PreHandle == nil:
		return nil, errors.New("handle: pre-handle workflow required")
	case p.Verifier == nil:
		return nil, errors.New("handle: signature verifier required")
	case p.Config == nil:
		return nil, errors.New("handle: config provider required")
	case p.Records == nil:
		return nil, errors.New("handle: block record manager required")
	}
	w := &Workflow{
		dispatcher:  p.Dispatcher,
		prehandle:   p.PreHandle,
		verifier:    p.Verifier,
		config:      p.Config,
		records:     p.Records,
		arena:       p.Arena,
		dedupe:      p.Dedupe,
		hooks:       p.Hooks,
		sysFiles:    p.SystemFiles,
		dualUpdates: p.DualUpdates,
		throttle:    p.Throttle,
		tracer:      p.Tracer,
		logger:      logging.Component(p.Logger, "handle"),
	}
	if w.arena == nil {
		w.arena = prehandle.NewArena()
	}
	if w.dedupe == nil {
		w.dedupe = dedupe.NewCache()
	}
	if w.hooks == nil {
		w.hooks = hooks.Default()
	}
	if w.sysFiles == nil {
		w.sysFiles = sysfiles.NewSystemFileUpdates(p.Config, p.Logger)
	}
	if w.dualUpdates == nil {
		w.dualUpdates = sysfiles.NewDualStateUpdates(p.Logger)
	}
	if w.throttle == nil {
		w.throttle = throttle.New(p.Config.Current())
	}
	if w.tracer == nil {
		w.tracer = ledgerotel.Tracer()
	}
	return w, nil
}

// Arena returns the side table pre-handle results are looked up in.
func (w *Workflow) Arena() *prehandle.Arena {
	return w.arena
}

// Dedupe returns the duplicate detection cache, which also serves receipts.
func (w *Workflow) Dedupe() *dedupe.Cache {
	return w.dedupe
}

// Restore reloads the handling inputs that earlier rounds stored in m and
// returns the dual state to pass to HandleRound. It must run before the first
// round handled after opening the ledger.
func (w *Workflow) Restore(m *state.Manager) (*state.DualState, error) {
	snap, err := w.sysFiles.Restore(m)
	if err != nil {
		return nil, fmt.Errorf("handle: restore: %w", err)
	}
	w.throttle.Refresh(snap)
	if err := w.throttle.Load(m); err != nil {
		return nil, fmt.Errorf("handle: restore: %w", err)
	}
	if err := w.dedupe.Load(m); err != nil {
		return nil, fmt.Errorf("handle: restore: %w", err)
	}
	dual, err := m.LoadDualState()
	if err != nil {
		return nil, fmt.Errorf("handle: restore: %w", err)
	}
	w.logger.Info("handling state restored",
		slog.Uint64("config_version", snap.Version),
		slog.Int("dedupe_entries", w.dedupe.Len()),
		slog.Time("freeze_time", dual.FreezeTime()))
	return dual, nil
}

// saveRoundState stores the handling inputs kept outside ledger entities, so
// a reopened node handles the next round like one that kept running.
func (w *Workflow) saveRoundState(store *state.Store, dual *state.DualState) error {
	sp := store.Begin()
	defer sp.Rollback()
	if err := w.dedupe.Save(sp.Manager); err != nil {
		return fmt.Errorf("save dedupe entries: %w", err)
	}
	if err := w.throttle.Save(sp.Manager); err != nil {
		return fmt.Errorf("save throttle levels: %w", err)
	}
	if dual != nil {
		if err := sp.SaveDualState(dual); err != nil {
			return fmt.Errorf("save dual state: %w", err)
		}
	}
	return sp.Commit()
}

// HandleRound applies every user transaction of round in consensus order and
// returns one record per user transaction. System transactions are skipped.
// Transaction failures never surface here; an error means the ledger itself
// could not make progress (non-monotonic consensus time, state commit
// failure) and the round must not be considered handled.
func (w *Workflow) HandleRound(ctx context.Context, store *state.Store, dual *state.DualState, round *types.ConsensusRound) ([]records.SingleTransactionRecord, error) {
	if round == nil {
		return nil, nil
	}
	started := time.Now()
	ctx, span := w.tracer.Start(ctx, "handle.round", trace.WithAttributes(
		attribute.Int64("round", int64(round.Number)),
		attribute.Int("transactions", round.TransactionCount()),
	))
	defer span.End()

	out := make([]records.SingleTransactionRecord, 0, round.TransactionCount())
	for _, event := range round.Events {
		if event == nil {
			continue
		}
		for _, tx := range event.Transactions {
			if tx == nil || tx.System {
				continue
			}
			rec, err := w.handleUserTransaction(ctx, store, dual, event.Creator, tx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "round aborted")
				return out, fmt.Errorf("handle: round %d: %w", round.Number, err)
			}
			out = append(out, rec)
		}
	}

	if len(out) > 0 {
		w.dedupe.Prune(w.records.ConsensusTime())
	}
	if err := w.saveRoundState(store, dual); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save round state")
		return out, fmt.Errorf("handle: round %d: %w", round.Number, err)
	}
	root, err := w.records.EndRound(store, round.Number)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "end round")
		return out, fmt.Errorf("handle: round %d: %w", round.Number, err)
	}
	elapsed := time.Since(started)
	observability.Handle().ObserveRound(elapsed, len(out))
	w.logger.Info("round handled",
		slog.Uint64("round", round.Number),
		slog.Int("records", len(out)),
		slog.String("state_root", root.Hex()),
		slog.Duration("elapsed", elapsed))
	return out, nil
}

func (w *Workflow) handleUserTransaction(ctx context.Context, store *state.Store, dual *state.DualState, creator types.NodeID, tx *types.PlatformTransaction) (records.SingleTransactionRecord, error) {
	preState := store.Root()
	if err := w.records.AdvanceConsensusClock(tx.ConsensusTime); err != nil {
		return records.SingleTransactionRecord{}, err
	}
	if err := w.records.StartUserTransaction(preState); err != nil {
		return records.SingleTransactionRecord{}, err
	}
	w.dualUpdates.Observe(dual, tx.ConsensusTime)

	sp := store.Begin()
	rec := w.handleTransaction(ctx, sp, dual, creator, tx)
	if !sp.Closed() {
		if err := sp.Commit(); err != nil {
			return records.SingleTransactionRecord{}, err
		}
	}
	if err := w.records.EndUserTransaction(rec); err != nil {
		return records.SingleTransactionRecord{}, err
	}
	return rec, nil
}
