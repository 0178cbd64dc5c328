package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgernode/config"
	"ledgernode/core/prehandle"
	"ledgernode/core/records"
	"ledgernode/core/types"
	"ledgernode/crypto"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir: t.TempDir(),
		Global:  config.DefaultGlobal(),
	}
}

func replayFixture(t *testing.T, cfg *config.Config) *node {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n, err := openNode(cfg, logger)
	require.NoError(t, err)

	fixture, err := LoadFixture(filepath.Join("testdata", "rounds.yaml"))
	require.NoError(t, err)
	keys, err := fixture.Keys("")
	require.NoError(t, err)
	if n.fresh() {
		_, err = n.seed(fixture, keys)
		require.NoError(t, err)
	}
	require.NoError(t, n.replay(context.Background(), fixture, keys, logger))
	return n
}

func TestReplayFixture(t *testing.T) {
	cfg := testConfig(t)
	n := replayFixture(t, cfg)
	defer n.close()

	_, round := n.blocks.StateRoot()
	require.EqualValues(t, 2, round)

	view := n.store.Snapshot()
	other, err := view.Balance(1002)
	require.NoError(t, err)
	require.EqualValues(t, 2500, other)
	created, err := view.GetAccount(1003)
	require.NoError(t, err)
	require.NotNil(t, created)
	require.EqualValues(t, 1000, created.Balance)
	require.False(t, n.dual.FreezeTime().IsZero())

	// the expired transfer's window closed before the end of round 2
	require.Equal(t, 3, n.workflow.Dedupe().Len())
}

func TestReplayResumesAfterRestart(t *testing.T) {
	cfg := testConfig(t)
	first := replayFixture(t, cfg)
	root, round := first.blocks.StateRoot()
	first.close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	second, err := openNode(cfg, logger)
	require.NoError(t, err)
	defer second.close()
	resumedRoot, resumedRound := second.blocks.StateRoot()
	require.Equal(t, root, resumedRoot)
	require.Equal(t, round, resumedRound)
	require.Equal(t, root, second.store.Root())

	fixture, err := LoadFixture(filepath.Join("testdata", "rounds.yaml"))
	require.NoError(t, err)
	keys, err := fixture.Keys("")
	require.NoError(t, err)
	require.NoError(t, second.replay(context.Background(), fixture, keys, logger))
	after, _ := second.blocks.StateRoot()
	require.Equal(t, root, after)
}

func TestOpsEndpoints(t *testing.T) {
	cfg := testConfig(t)
	n := replayFixture(t, cfg)
	defer n.close()

	srv := httptest.NewServer(newOpsHandler(n.workflow.Dedupe(), n.blocks, slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer srv.Close()

	get := func(path string) *http.Response {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	require.Equal(t, http.StatusOK, get("/healthz").StatusCode)
	require.Equal(t, http.StatusOK, get("/metrics").StatusCode)

	resp := get("/state")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st stateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.EqualValues(t, 2, st.Round)
	require.NotEmpty(t, st.RunningHash)

	fixture, err := LoadFixture(filepath.Join("testdata", "rounds.yaml"))
	require.NoError(t, err)
	keys, err := fixture.Keys("")
	require.NoError(t, err)
	body, err := fixture.Rounds[0].Events[0].Transactions[0].Body(keys)
	require.NoError(t, err)

	resp = get("/receipts/" + body.TransactionID.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var receipt struct {
		Status types.ResponseCode `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&receipt))
	require.Equal(t, types.ResponseSuccess, receipt.Status)

	require.Equal(t, http.StatusNotFound, get("/receipts/0.0.1001@1.000000000").StatusCode)
	require.Equal(t, http.StatusBadRequest, get("/receipts/garbage").StatusCode)
	require.Equal(t, http.StatusBadRequest, get("/blocks/x").StatusCode)
	require.Equal(t, http.StatusNotFound, get("/blocks/999").StatusCode)
}

// resubmission is round 1's first transfer ordered again in round 3, still
// inside its validity window.
func resubmission(t *testing.T, fixture *Fixture) FixtureRound {
	t.Helper()
	tx := fixture.Rounds[0].Events[0].Transactions[0]
	first, err := tx.Body(nil)
	require.NoError(t, err)
	tx.At = time.Date(2024, 3, 1, 12, 0, 10, 0, time.UTC)
	offset := first.TransactionID.ValidStart().Sub(tx.At)
	tx.ValidStart = &offset
	return FixtureRound{Number: 3, Events: []FixtureEvent{{Creator: 0, Transactions: []FixtureTransaction{tx}}}}
}

func handleFixtureRound(t *testing.T, n *node, fr FixtureRound, keys map[types.AccountID]*crypto.PrivateKey) []records.SingleTransactionRecord {
	t.Helper()
	round, err := fr.Round(keys)
	require.NoError(t, err)
	ctx := context.Background()
	workers := int(n.provider.Current().Global.Signatures.Workers)
	require.NoError(t, prehandle.PreHandleRound(ctx, n.pre, n.store, round, n.workflow.Arena(), workers))
	out, err := n.workflow.HandleRound(ctx, n.store, n.dual, round)
	require.NoError(t, err)
	return out
}

func TestResubmissionAfterRestartIsDuplicate(t *testing.T) {
	fixture, err := LoadFixture(filepath.Join("testdata", "rounds.yaml"))
	require.NoError(t, err)
	keys, err := fixture.Keys("")
	require.NoError(t, err)
	round3 := resubmission(t, fixture)
	original, err := fixture.Rounds[0].Events[0].Transactions[0].Body(keys)
	require.NoError(t, err)

	running := replayFixture(t, testConfig(t))
	defer running.close()
	want := handleFixtureRound(t, running, round3, keys)
	require.Len(t, want, 1)
	require.Equal(t, types.ResponseDuplicateTransaction, want[0].Record.Status)
	require.Equal(t, original.TransactionID, want[0].Record.TransactionID)
	wantRoot, wantRound := running.blocks.StateRoot()

	cfg := testConfig(t)
	first := replayFixture(t, cfg)
	first.close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reopened, err := openNode(cfg, logger)
	require.NoError(t, err)
	defer reopened.close()
	require.Equal(t, running.workflow.Dedupe().Len(), reopened.workflow.Dedupe().Len())
	require.True(t, running.dual.FreezeTime().Equal(reopened.dual.FreezeTime()))
	require.Equal(t, running.provider.Current().Version, reopened.provider.Current().Version)

	got := handleFixtureRound(t, reopened, round3, keys)
	require.Len(t, got, 1)
	require.Equal(t, types.ResponseDuplicateTransaction, got[0].Record.Status)
	require.Equal(t, want[0].Record.TransactionFee, got[0].Record.TransactionFee)

	gotRoot, gotRound := reopened.blocks.StateRoot()
	require.Equal(t, wantRound, gotRound)
	require.Equal(t, wantRoot, gotRoot)

	balance, err := reopened.store.Snapshot().Balance(1002)
	require.NoError(t, err)
	require.EqualValues(t, 2500, balance, "the resubmitted transfer is not applied again")
}
