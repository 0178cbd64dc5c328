package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"ledgernode/core/types"
)

type Config struct {
	NodeID       types.NodeID `toml:"NodeID"`
	DataDir      string       `toml:"DataDir"`
	RoundsFile   string       `toml:"RoundsFile"`
	OpsAddress   string       `toml:"OpsAddress"`
	Environment  string       `toml:"Environment"`
	LogFile      string       `toml:"LogFile,omitempty"`
	OTLPEndpoint string       `toml:"OTLPEndpoint,omitempty"`
	OTLPInsecure bool         `toml:"OTLPInsecure,omitempty"`
	Global       Global       `toml:"global"`
}

// Load loads the configuration from the given path. Values absent from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if err := ValidateConfig(cfg.Global); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if _, ok := cfg.Global.NodeAccount(cfg.NodeID); !ok {
		return nil, fmt.Errorf("config file %s: node %d missing from address book", path, cfg.NodeID)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		NodeID:      0,
		DataDir:     "./ledger-data",
		OpsAddress:  ":9090",
		Environment: "local",
		Global:      DefaultGlobal(),
	}
}

// createDefault writes the default configuration to path.
func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
