package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ledgernode/core/types"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}
	if cfg.DataDir != "./ledger-data" || cfg.OpsAddress != ":9090" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Global.Ledger.FundingAccount != cfg.Global.Ledger.FundingAccount {
		t.Fatalf("funding account changed across reload")
	}
	if len(reloaded.Global.Fees.Schedule) != len(types.Functionalities()) {
		t.Fatalf("unexpected schedule size: %d", len(reloaded.Global.Fees.Schedule))
	}
}

func TestLoadOverridesGlobal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `NodeID = 1
DataDir = "./data"
Environment = "test"

[global.Ledger]
FundingAccount = 99

[global.Transactions]
MaxValidDurationSecs = 120

[global.Fees.Schedule.CryptoTransfer]
Node = 1
Network = 2
Service = 3
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NodeID != 1 || cfg.Environment != "test" {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.Global.Ledger.FundingAccount != 99 {
		t.Fatalf("funding account not overridden: %d", cfg.Global.Ledger.FundingAccount)
	}
	if cfg.Global.Ledger.FirstUserEntity != DefaultGlobal().Ledger.FirstUserEntity {
		t.Fatalf("default first user entity lost")
	}
	if cfg.Global.Transactions.MaxValidDurationSecs != 120 {
		t.Fatalf("max valid duration not overridden")
	}
	entry, ok := cfg.Global.FeeScheduleFor(types.FunctionalityCryptoTransfer)
	if !ok || entry != (FeeComponents{Node: 1, Network: 2, Service: 3}) {
		t.Fatalf("unexpected schedule entry: %+v", entry)
	}
	if _, ok := cfg.Global.FeeScheduleFor(types.FunctionalityCryptoCreate); !ok {
		t.Fatalf("default schedule entry lost")
	}
}

func TestLoadRejectsUnknownNode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("NodeID = 42\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "address book") {
		t.Fatalf("expected address book error, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := map[string]func(*Global){
		"no funding account": func(g *Global) { g.Ledger.FundingAccount = 0 },
		"duration bounds":    func(g *Global) { g.Transactions.MinValidDurationSecs = 500 },
		"exchange rate":      func(g *Global) { g.Fees.ExchangeRate.CentEquiv = 0 },
		"unknown schedule":   func(g *Global) { g.Fees.Schedule["Bogus"] = FeeComponents{} },
		"bad bucket":         func(g *Global) { g.Throttles.Buckets["CryptoTransfer"] = Throttle{} },
		"no workers":         func(g *Global) { g.Signatures.Workers = 0 },
		"duplicate node":     func(g *Global) { g.Nodes = append(g.Nodes, g.Nodes[0]) },
		"protected overlap":  func(g *Global) { g.Ledger.FirstUserEntity = g.Ledger.MaxProtectedEntity },
	}
	if err := ValidateConfig(DefaultGlobal()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	for name, mutate := range cases {
		g := DefaultGlobal()
		mutate(&g)
		if err := ValidateConfig(g); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestProviderUpdateBumpsVersion(t *testing.T) {
	p, err := NewProvider(DefaultGlobal())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	first := p.Current()
	if first.Version != 1 {
		t.Fatalf("unexpected initial version: %d", first.Version)
	}

	next, err := p.Update(func(g *Global) error {
		g.Fees.ExchangeRate = ExchangeRate{HbarEquiv: 2, CentEquiv: 30}
		g.Fees.Schedule["CryptoTransfer"] = FeeComponents{Node: 5}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if next.Version != 2 || p.Current() != next {
		t.Fatalf("update not published")
	}
	if first.Global.Fees.ExchangeRate.HbarEquiv != 1 {
		t.Fatalf("previous snapshot mutated")
	}
	if first.Global.Fees.Schedule["CryptoTransfer"].Node == 5 {
		t.Fatalf("previous snapshot schedule mutated")
	}

	if _, err := p.Update(func(g *Global) error {
		g.Signatures.Workers = 0
		return nil
	}); err == nil {
		t.Fatalf("expected invalid update to be rejected")
	}
	if p.Current().Version != 2 {
		t.Fatalf("rejected update changed version")
	}
}

func TestProviderRestoreKeepsVersion(t *testing.T) {
	p, err := NewProvider(DefaultGlobal())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	g := DefaultGlobal()
	g.Fees.ExchangeRate = ExchangeRate{HbarEquiv: 3, CentEquiv: 40}
	snap, err := p.Restore(5, g)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if snap.Version != 5 || p.Current() != snap {
		t.Fatalf("restore not published at version 5")
	}
	g.Fees.Schedule["CryptoTransfer"] = FeeComponents{Node: 1}
	if p.Current().Global.Fees.Schedule["CryptoTransfer"].Node == 1 {
		t.Fatalf("restored snapshot shares the caller's schedule")
	}

	next, err := p.Update(func(*Global) error { return nil })
	if err != nil || next.Version != 6 {
		t.Fatalf("update after restore: version=%d err=%v", next.Version, err)
	}

	bad := DefaultGlobal()
	bad.Signatures.Workers = 0
	if _, err := p.Restore(7, bad); err == nil {
		t.Fatalf("expected invalid restore to be rejected")
	}
	if _, err := p.Restore(0, DefaultGlobal()); err == nil {
		t.Fatalf("expected version zero to be rejected")
	}
	if p.Current().Version != 6 {
		t.Fatalf("rejected restore changed version")
	}
}
