package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/persistence/indexdb"
	persistlog "github.com/VMF-HIBIKI/GAS-Learning/internal/persistence/log"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/persistence/snapshot"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/catalogs"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/tuning"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/world"
)

func run(ctx context.Context, cfg Config, log *zap.Logger) error {
	cats, err := catalogs.Load(cfg.ConfigDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}
	tune, err := tuning.Load(cfg.tuningPath())
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}
	worldDir := cfg.worldDir()
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		return err
	}

	w, err := world.New(world.WorldConfig{ID: cfg.WorldID, Tuning: tune}, cats, log.Named("world"))
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}
	if err := resume(cfg, w, log); err != nil {
		return err
	}

	var idx *indexdb.SQLiteIndex
	if !cfg.DisableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"), log.Named("index"))
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune, w.TuningDigest()); err != nil {
			log.Warn("index: upsert catalogs", zap.Error(err))
		}
	}

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(multiTickLogger{tickLog, idx})
	w.SetAuditLogger(multiAuditLogger{auditLog, idx})

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(cfg, w, idx, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := w.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		writeSnapshots(gctx, worldDir, snapCh, idx, log)
		return nil
	})
	if cfg.WatchDelay > 0 {
		g.Go(func() error {
			return tuning.Watch(gctx, cfg.tuningPath(), cfg.WatchDelay, log.Named("tuning"), func(t tuning.Tuning) {
				if !w.UpdateTuning(t) {
					log.Warn("tuning update dropped, previous one not applied yet")
				}
			})
		})
	}
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("world", cfg.WorldID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// resume loads the configured or newest snapshot into w, if any.
func resume(cfg Config, w *world.World, log *zap.Logger) error {
	path := cfg.Snapshot
	if path == "" && cfg.LoadLatest {
		latest, err := snapshot.Latest(cfg.worldDir())
		if err != nil {
			return err
		}
		path = latest
	}
	if path == "" {
		return nil
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	if snap.TickRate != w.TickRateHz() {
		log.Warn("snapshot tick rate differs from tuning", zap.Int("snapshot", snap.TickRate), zap.Int("tuning", w.TickRateHz()))
	}
	log.Info("resumed", zap.String("snapshot", filepath.Base(path)), zap.Uint64("tick", w.CurrentTick()), zap.Int("actors", len(snap.Actors)))
	return nil
}

func writeSnapshots(ctx context.Context, worldDir string, ch <-chan snapshot.SnapshotV1, idx *indexdb.SQLiteIndex, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			path := snapshot.Path(worldDir, snap.Header.Tick)
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				log.Warn("snapshot write failed", zap.Uint64("tick", snap.Header.Tick), zap.Error(err))
				continue
			}
			idx.RecordSnapshot(path, snap)
			log.Debug("snapshot written", zap.String("path", path))
		}
	}
}

type multiTickLogger struct {
	a world.TickLogger
	b *indexdb.SQLiteIndex
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	err := m.a.WriteTick(entry)
	_ = m.b.WriteTick(entry)
	return err
}

type multiAuditLogger struct {
	a world.AuditLogger
	b *indexdb.SQLiteIndex
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	err := m.a.WriteAudit(entry)
	_ = m.b.WriteAudit(entry)
	return err
}
