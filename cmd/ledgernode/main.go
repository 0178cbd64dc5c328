package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"ledgernode/config"
	"ledgernode/core/dispatch"
	"ledgernode/core/handle"
	"ledgernode/core/prehandle"
	"ledgernode/core/records"
	"ledgernode/core/signature"
	"ledgernode/core/state"
	"ledgernode/core/types"
	"ledgernode/crypto"
	"ledgernode/native/accounts"
	"ledgernode/native/files"
	"ledgernode/native/freeze"
	"ledgernode/observability/logging"
	ledgerotel "ledgernode/observability/otel"
	"ledgernode/storage"
	"ledgernode/storage/trie"
)

const (
	logMaxSizeMB  = 100
	logMaxBackups = 5

	keystorePassEnv = "LEDGERNODE_KEYSTORE_PASSPHRASE"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	roundsFlag := flag.String("rounds", "", "YAML round fixture to replay (overrides RoundsFile)")
	serveFlag := flag.Bool("serve", false, "Keep serving ops endpoints after the replay finishes")
	levelFlag := flag.String("log-level", os.Getenv("LEDGERNODE_LOG_LEVEL"), "Log level: debug, info, warn or error")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup("ledgernode", cfg.Environment,
		logging.WithLevel(logging.ParseLevel(*levelFlag)),
		logging.WithFile(cfg.LogFile, logMaxSizeMB, logMaxBackups))
	logger = logger.With(slog.String("run_id", uuid.NewString()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
		shutdown, err := ledgerotel.Init(ctx, ledgerotel.Config{
			ServiceName: "ledgernode",
			Environment: cfg.Environment,
			Endpoint:    endpoint,
			Insecure:    cfg.OTLPInsecure,
			Headers:     ledgerotel.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			logger.Error("failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.Any("error", err))
			}
		}()
	}

	roundsPath := strings.TrimSpace(*roundsFlag)
	if roundsPath == "" {
		roundsPath = strings.TrimSpace(cfg.RoundsFile)
	}
	if err := run(ctx, cfg, roundsPath, *serveFlag, logger); err != nil {
		logger.Error("ledgernode stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// node bundles the long-lived components of a running ledger node.
type node struct {
	store    *state.Store
	dual     *state.DualState
	provider *config.Provider
	blocks   *records.BlockRecordManager
	pre      *prehandle.Workflow
	workflow *handle.Workflow
	close    func()
}

func openNode(cfg *config.Config, logger *slog.Logger) (*node, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare data directory: %w", err)
	}
	recordDB, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "records"))
	if err != nil {
		return nil, fmt.Errorf("open record database: %w", err)
	}
	trieDB, stateDB, err := trie.OpenDatabase(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		recordDB.Close()
		return nil, err
	}
	closeAll := func() {
		_ = trieDB.Close()
		_ = stateDB.Close()
		recordDB.Close()
	}

	provider, err := config.NewProvider(cfg.Global)
	if err != nil {
		closeAll()
		return nil, err
	}
	g := provider.Current().Global
	blocks, err := records.NewBlockRecordManager(recordDB, g.BlockPeriod(), logger)
	if err != nil {
		closeAll()
		return nil, err
	}
	root, round := blocks.StateRoot()
	tr, err := trie.New(trieDB, root)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open state at round %d: %w", round, err)
	}

	store := state.NewStore(tr)
	sp := store.Begin()
	if err := state.EnsureStateVersion(sp); err != nil {
		sp.Rollback()
		closeAll()
		return nil, err
	}
	if err := sp.Commit(); err != nil {
		closeAll()
		return nil, err
	}

	registry := dispatch.NewRegistry()
	accounts.Register(registry)
	files.Register(registry)
	freeze.Register(registry)

	verifier := signature.NewVerifier(g.Signatures.Workers)
	pre := prehandle.NewWorkflow(registry, verifier, provider, logger)
	workflow, err := handle.NewWorkflow(handle.Params{
		Dispatcher: registry,
		PreHandle:  pre,
		Verifier:   verifier,
		Config:     provider,
		Records:    blocks,
		Logger:     logger,
	})
	if err != nil {
		closeAll()
		return nil, err
	}
	dual, err := workflow.Restore(store.Snapshot())
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("restore state at round %d: %w", round, err)
	}
	return &node{
		store:    store,
		dual:     dual,
		provider: provider,
		blocks:   blocks,
		pre:      pre,
		workflow: workflow,
		close: func() {
			if err := blocks.Flush(); err != nil {
				logger.Warn("flush record stream", slog.Any("error", err))
			}
			closeAll()
		},
	}, nil
}

// fresh reports whether no round was ever handled into the state.
func (n *node) fresh() bool {
	root, round := n.blocks.StateRoot()
	return round == 0 && root == (common.Hash{})
}

// seed writes the fixture accounts and the ledger's special accounts into a
// fresh state and commits it.
func (n *node) seed(fixture *Fixture, keys map[types.AccountID]*crypto.PrivateKey) (int, error) {
	g := n.provider.Current().Global
	extra := []types.AccountID{g.Ledger.FundingAccount, g.Ledger.StakingRewardAccount}
	for _, info := range g.Nodes {
		extra = append(extra, info.Account)
	}
	sp := n.store.Begin()
	seeded, err := fixture.Seed(sp, keys, extra...)
	if err != nil {
		sp.Rollback()
		return 0, err
	}
	if err := sp.Commit(); err != nil {
		return 0, err
	}
	if _, err := n.store.Commit(0); err != nil {
		return 0, err
	}
	return seeded, nil
}

// replay pre-handles and handles every fixture round the node has not handled
// yet.
func (n *node) replay(ctx context.Context, fixture *Fixture, keys map[types.AccountID]*crypto.PrivateKey, logger *slog.Logger) error {
	_, handled := n.blocks.StateRoot()
	workers := int(n.provider.Current().Global.Signatures.Workers)
	for _, fr := range fixture.Rounds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if fr.Number <= handled {
			logger.Debug("skipping handled round", slog.Uint64("round", fr.Number))
			continue
		}
		round, err := fr.Round(keys)
		if err != nil {
			return err
		}
		if err := prehandle.PreHandleRound(ctx, n.pre, n.store, round, n.workflow.Arena(), workers); err != nil {
			return fmt.Errorf("pre-handle round %d: %w", round.Number, err)
		}
		out, err := n.workflow.HandleRound(ctx, n.store, n.dual, round)
		if err != nil {
			return err
		}
		for _, rec := range out {
			logger.Info("record",
				slog.String("txid", rec.Record.TransactionID.String()),
				slog.String("status", rec.Record.Status.String()),
				slog.Uint64("fee", rec.Record.TransactionFee),
				slog.Int("children", len(rec.Children)))
		}
	}
	return n.blocks.Flush()
}

func run(ctx context.Context, cfg *config.Config, roundsPath string, serve bool, logger *slog.Logger) error {
	n, err := openNode(cfg, logger)
	if err != nil {
		return err
	}
	defer n.close()

	var srv *http.Server
	if addr := strings.TrimSpace(cfg.OpsAddress); addr != "" {
		srv = &http.Server{
			Addr:              addr,
			Handler:           newOpsHandler(n.workflow.Dedupe(), n.blocks, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("ops server listening", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ops server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if roundsPath != "" {
		fixture, err := LoadFixture(roundsPath)
		if err != nil {
			return err
		}
		keys, err := fixture.Keys(os.Getenv(keystorePassEnv))
		if err != nil {
			return err
		}
		if n.fresh() {
			seeded, err := n.seed(fixture, keys)
			if err != nil {
				return fmt.Errorf("seed state: %w", err)
			}
			logger.Info("seeded state", slog.Int("accounts", seeded))
		}
		if err := n.replay(ctx, fixture, keys, logger); err != nil {
			return err
		}
		root, round := n.blocks.StateRoot()
		logger.Info("replay finished", slog.Uint64("round", round), slog.String("state_root", root.Hex()))
	}

	if serve && srv != nil {
		<-ctx.Done()
	}
	return nil
}
