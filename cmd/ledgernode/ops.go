package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ledgernode/core/dedupe"
	"ledgernode/core/records"
	"ledgernode/core/types"
	"ledgernode/observability"
)

// opsServer serves read-only operator endpoints while rounds are handled.
// Everything it reads is safe for concurrent use with the handle workflow.
type opsServer struct {
	receipts *dedupe.Cache
	blocks   *records.BlockRecordManager
	logger   *slog.Logger
}

type stateResponse struct {
	StateRoot     common.Hash `json:"stateRoot"`
	Round         uint64      `json:"round"`
	ConsensusTime time.Time   `json:"consensusTime"`
	RunningHash   string      `json:"runningHash"`
	LastBlock     *uint64     `json:"lastBlock,omitempty"`
}

func newOpsHandler(receipts *dedupe.Cache, blocks *records.BlockRecordManager, logger *slog.Logger) http.Handler {
	s := &opsServer{receipts: receipts, blocks: blocks, logger: logger}
	r := chi.NewRouter()
	r.Use(s.observe)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/state", s.state)
	r.Get("/receipts/{txid}", s.receipt)
	r.Get("/blocks/{number}", s.block)
	return otelhttp.NewHandler(r, "ops")
}

func (s *opsServer) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		observability.Ops().Observe(route, recorder.status, time.Since(start))
	})
}

func (s *opsServer) state(w http.ResponseWriter, _ *http.Request) {
	root, round := s.blocks.StateRoot()
	resp := stateResponse{
		StateRoot:     root,
		Round:         round,
		ConsensusTime: s.blocks.ConsensusTime(),
		RunningHash:   common.Bytes2Hex(s.blocks.RunningHash()),
	}
	if header, ok := s.blocks.LastBlock(); ok {
		number := header.Number
		resp.LastBlock = &number
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *opsServer) receipt(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseTransactionID(chi.URLParam(r, "txid"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, ok := s.receipts.Receipt(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "receipt not found")
		return
	}
	s.writeJSON(w, http.StatusOK, receipt)
}

func (s *opsServer) block(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseUint(chi.URLParam(r, "number"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid block number")
		return
	}
	block, err := s.blocks.Block(number)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, block)
}

func (s *opsServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write ops response", slog.Any("error", err))
	}
}

func (s *opsServer) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
