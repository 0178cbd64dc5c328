package prehandle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledgernode/config"
	"ledgernode/core/dispatch"
	"ledgernode/core/signature"
	"ledgernode/core/state"
	"ledgernode/core/types"
	"ledgernode/observability/logging"
)

// Workflow validates transactions ahead of consensus and starts their
// signature verifications.
type Workflow struct {
	dispatcher dispatch.Dispatcher
	expander   signature.Expander
	verifier   *signature.Verifier
	config     *config.Provider
	logger     *slog.Logger
}

// NewWorkflow wires the pre-handle workflow.
func NewWorkflow(d dispatch.Dispatcher, verifier *signature.Verifier, cfg *config.Provider, logger *slog.Logger) *Workflow {
	return &Workflow{
		dispatcher: d,
		verifier:   verifier,
		config:     cfg,
		logger:     logging.Component(logger, "prehandle"),
	}
}

// PreHandle validates tx as submitted by creator against a read-only view of
// the state. It never fails: every problem is reported through the result.
func (w *Workflow) PreHandle(ctx context.Context, view *state.Manager, creator types.NodeInfo, tx *types.PlatformTransaction) (result *Result) {
	snap := w.config.Current()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("pre-handle panicked", slog.Any("panic", r))
			result = &Result{Status: UnknownFailure, ResponseCode: types.ResponseFailInvalid, ConfigVersion: snap.Version, Creator: creator}
		}
	}()

	signed, body, err := types.ParseTransaction(tx.Contents)
	if err != nil {
		code := types.ResponseInvalidTransaction
		if !errors.Is(err, types.ErrEmptyTransaction) && !errors.Is(err, types.ErrEmptyBody) {
			code = types.ResponseBadEncoding
		}
		return withCreator(dueDiligence(code, snap.Version), creator)
	}
	if code, ok := checkBody(body, creator, snap.Global); !ok {
		res := withCreator(dueDiligence(code, snap.Version), creator)
		res.Transaction, res.Body, res.Payer = signed, body, body.TransactionID.Payer
		return res
	}

	res := &Result{
		Status:        SoFarSoGood,
		ResponseCode:  types.ResponseOK,
		Transaction:   signed,
		Body:          body,
		Payer:         body.TransactionID.Payer,
		Creator:       creator,
		ConfigVersion: snap.Version,
	}

	payer, err := view.LiveAccount(res.Payer)
	if err != nil {
		res.Status, res.ResponseCode = NodeDueDiligenceFailure, types.ResponsePayerAccountNotFound
		return res
	}
	res.PayerKey = append(types.Key(nil), payer.Key...)

	expanded := make(map[string]signature.Expanded)
	w.expander.Expand([]types.Key{res.PayerKey}, signed.SigMap, expanded)
	w.expander.ExpandFullPrefixes(signed.SigMap, expanded)

	pctx := dispatch.NewPreHandleContext(view, body, snap)
	if err := w.dispatcher.DispatchPreHandle(pctx); err != nil {
		if code, typed := dispatch.ResponseCodeOf(err); typed {
			res.Status, res.ResponseCode = PreHandleFailure, code
		} else {
			w.logger.Warn("pre-handle dispatch failed", slog.String("txid", body.TransactionID.String()), slog.Any("error", err))
			res.Status, res.ResponseCode = UnknownFailure, types.ResponseFailInvalid
		}
	} else {
		res.RequiredKeys = pctx.RequiredKeys()
		res.OptionalKeys = pctx.OptionalKeys()
		w.expander.Expand(res.RequiredKeys, signed.SigMap, expanded)
		w.expander.Expand(res.OptionalKeys, signed.SigMap, expanded)
	}

	res.Verifications = w.verifier.Verify(ctx, signed.BodyBytes, expanded)
	return res
}

func withCreator(res *Result, creator types.NodeInfo) *Result {
	res.Creator = creator
	return res
}

// checkBody runs the stateless checks a diligent node performs before
// submitting a transaction.
func checkBody(body *types.TransactionBody, creator types.NodeInfo, g config.Global) (types.ResponseCode, bool) {
	switch {
	case body.Functionality() == types.FunctionalityNone:
		return types.ResponseInvalidTransactionBody, false
	case body.TransactionID.Payer == 0:
		return types.ResponsePayerAccountNotFound, false
	case body.NodeAccount != creator.Account:
		return types.ResponseInvalidNodeAccount, false
	case g.Transactions.MaxMemoBytes > 0 && len(body.Memo) > g.Transactions.MaxMemoBytes:
		return types.ResponseMemoTooLong, false
	default:
		return types.ResponseOK, true
	}
}

// CreatorInfo resolves the address book entry of a node.
func CreatorInfo(g config.Global, id types.NodeID) (types.NodeInfo, error) {
	account, ok := g.NodeAccount(id)
	if !ok {
		return types.NodeInfo{ID: id}, fmt.Errorf("prehandle: node %d not in address book", id)
	}
	return types.NodeInfo{ID: id, Account: account}, nil
}
