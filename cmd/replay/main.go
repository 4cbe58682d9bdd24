package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/persistence/snapshot"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/catalogs"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/tuning"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/world"
)

type options struct {
	worldDir  string
	worldID   string
	snapshot  string
	configDir string
	tuning    string
	fromTick  uint64
	toTick    uint64
	verbose   bool
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run a world's tick log and verify its state digests",
		Long: `Replays the tick log of a world directory (data/worlds/<id>) through a fresh
world, or through a world resumed from --snapshot, and checks that every tick
reproduces the digest the server logged. The catalogs and starting tuning
must match the ones the server ran with; tuning reloads are in the log.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			if o.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			log, err := config.Build()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = log.Sync() }()
			return runReplay(o, log)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.worldDir, "world-dir", "", "world data directory holding ticks/ (required)")
	f.StringVar(&o.worldID, "world", "arena", "world id, when not resuming from a snapshot")
	f.StringVar(&o.snapshot, "snapshot", "", "snapshot to start from (optional)")
	f.StringVar(&o.configDir, "configs", "./configs", "config directory")
	f.StringVar(&o.tuning, "tuning", "", "starting tuning.yaml (default <configs>/tuning.yaml)")
	f.Uint64Var(&o.fromTick, "from-tick", 0, "first tick to verify")
	f.Uint64Var(&o.toTick, "to-tick", 0, "last tick to replay (0 = end of log)")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	_ = cmd.MarkFlagRequired("world-dir")
	return cmd
}

func runReplay(o options, log *zap.Logger) error {
	cats, err := catalogs.Load(o.configDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}
	tp := o.tuning
	if tp == "" {
		tp = o.configDir + "/tuning.yaml"
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	worldID := o.worldID
	var snap *snapshot.SnapshotV1
	if o.snapshot != "" {
		s, err := snapshot.ReadSnapshot(o.snapshot)
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		snap = &s
		worldID = s.Header.WorldID
	}

	w, err := world.New(world.WorldConfig{ID: worldID, Tuning: tune}, cats, log.Named("world"))
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}
	if snap != nil {
		if snap.TuningDigest != "" && snap.TuningDigest != w.TuningDigest() {
			log.Warn("snapshot tuning differs from --tuning; digests may not match",
				zap.String("snapshot", snap.TuningDigest), zap.String("loaded", w.TuningDigest()))
		}
		if err := w.ImportSnapshot(*snap); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
	}

	start := w.CurrentTick()
	res, err := verify(w, o.worldDir, o.fromTick, o.toTick, log)
	if err != nil {
		return err
	}
	if res.Checked == 0 {
		return fmt.Errorf("no ticks replayed from %s (start tick %d)", o.worldDir, start)
	}
	log.Info("replay ok",
		zap.Uint64("start_tick", start),
		zap.Uint64("last_tick", res.LastTick),
		zap.Uint64("checked", res.Checked),
		zap.Uint64("skipped", res.Skipped))
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
