package main

import (
	"fmt"

	"go.uber.org/zap"

	persistlog "github.com/VMF-HIBIKI/GAS-Learning/internal/persistence/log"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/world"
)

type result struct {
	Checked  uint64
	Skipped  uint64
	LastTick uint64
}

// verify re-runs the tick log under worldDir against w and compares every
// digest in [from, to]. Entries before w's current tick are skipped. to == 0
// means no upper bound.
func verify(w *world.World, worldDir string, from, to uint64, log *zap.Logger) (result, error) {
	var res result
	started := false
	err := persistlog.ForEachTick(worldDir, func(e world.TickLogEntry) error {
		if e.Tick < w.CurrentTick() {
			if started {
				// A server restarted from a snapshot logs the ticks after it again.
				return fmt.Errorf("tick log rewinds to tick %d after tick %d; replay from the snapshot the server resumed from", e.Tick, res.LastTick)
			}
			res.Skipped++
			return nil
		}
		started = true
		if to != 0 && e.Tick > to {
			return persistlog.ErrStop
		}
		if e.Tick != w.CurrentTick() {
			return fmt.Errorf("tick log gap: expected tick %d, got %d", w.CurrentTick(), e.Tick)
		}
		if e.Tuning != nil {
			w.ApplyTuning(*e.Tuning)
		}

		joins := make([]world.JoinRequest, 0, len(e.Joins))
		for _, j := range e.Joins {
			joins = append(joins, world.JoinRequest{Name: j.Name, LocallyControlled: j.LocallyControlled})
		}
		tick, digest := w.StepOnce(joins, e.Leaves, e.Commands)
		for _, j := range e.Joins {
			if w.Component(j.ActorID) == nil {
				return fmt.Errorf("tick %d: join produced a different actor id than %s", tick, j.ActorID)
			}
		}
		res.LastTick = tick
		if tick < from {
			return nil
		}
		if digest != e.Digest {
			return fmt.Errorf("digest mismatch at tick %d: log=%s replay=%s", tick, e.Digest, digest)
		}
		res.Checked++
		if res.Checked%10000 == 0 {
			log.Info("replay progress", zap.Uint64("tick", tick), zap.Uint64("checked", res.Checked))
		}
		return nil
	})
	return res, err
}
