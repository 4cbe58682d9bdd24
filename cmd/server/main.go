package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newRootCmd() *cobra.Command {
	cfg, envErr := loadEnv()

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Run the ability simulation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			log, err := newLogger(cfg.Verbose)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address")
	f.StringVar(&cfg.WorldID, "world", cfg.WorldID, "world id")
	f.StringVar(&cfg.ConfigDir, "configs", cfg.ConfigDir, "config directory (abilities.json, effects.json, tuning.yaml)")
	f.StringVar(&cfg.DataDir, "data", cfg.DataDir, "runtime data directory")
	f.StringVar(&cfg.TuningPath, "tuning", cfg.TuningPath, "path to tuning.yaml (default <configs>/tuning.yaml)")
	f.BoolVar(&cfg.DisableDB, "disable-db", cfg.DisableDB, "disable the sqlite index")
	f.StringVar(&cfg.Snapshot, "snapshot", cfg.Snapshot, "snapshot to resume from")
	f.BoolVar(&cfg.LoadLatest, "load-latest-snapshot", cfg.LoadLatest, "resume from the newest snapshot when --snapshot is empty")
	f.DurationVar(&cfg.WatchDelay, "tuning-debounce", cfg.WatchDelay, "debounce for tuning reloads (0 disables watching)")
	f.BoolVar(&cfg.AdminHTTP, "admin-http", cfg.AdminHTTP, "serve loopback-only admin endpoints")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "debug logging")
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	log, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
