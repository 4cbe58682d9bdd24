package tuning

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads path whenever it changes and hands every valid result to
// apply. Invalid files are logged and skipped. Watch blocks until ctx is
// done.
//
// The parent directory is watched so editors that replace the file on save
// are still seen. Bursts of writes are coalesced over debounce.
func Watch(ctx context.Context, path string, debounce time.Duration, log *zap.Logger, apply func(Tuning)) error {
	if log == nil {
		log = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("tuning watch error", zap.Error(err))
		case <-fire:
			fire = nil
			t, err := Load(abs)
			if err != nil {
				log.Warn("tuning reload rejected", zap.String("path", abs), zap.Error(err))
				continue
			}
			log.Info("tuning reloaded", zap.String("path", abs), zap.Int("tick_rate_hz", t.TickRateHz))
			apply(t)
		}
	}
}
