package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server configuration. Environment variables set the
// defaults; flags override them.
type Config struct {
	Addr       string        `env:"GAS_ADDR" envDefault:":8080"`
	WorldID    string        `env:"GAS_WORLD" envDefault:"arena"`
	ConfigDir  string        `env:"GAS_CONFIGS" envDefault:"./configs"`
	DataDir    string        `env:"GAS_DATA" envDefault:"./data"`
	TuningPath string        `env:"GAS_TUNING"`
	DisableDB  bool          `env:"GAS_DISABLE_DB"`
	Snapshot   string        `env:"GAS_SNAPSHOT"`
	LoadLatest bool          `env:"GAS_LOAD_LATEST_SNAPSHOT" envDefault:"true"`
	WatchDelay time.Duration `env:"GAS_TUNING_DEBOUNCE" envDefault:"250ms"`
	AdminHTTP  bool          `env:"GAS_ENABLE_ADMIN_HTTP" envDefault:"true"`
	Verbose    bool          `env:"GAS_VERBOSE"`
}

func loadEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) worldDir() string { return filepath.Join(c.DataDir, "worlds", c.WorldID) }

func (c Config) tuningPath() string {
	if c.TuningPath != "" {
		return c.TuningPath
	}
	return filepath.Join(c.ConfigDir, "tuning.yaml")
}
