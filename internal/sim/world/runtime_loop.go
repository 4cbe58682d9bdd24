package world

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/tuning"
)

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval(w.cfg.Tuning.TickRateHz))
	defer ticker.Stop()
	defer w.closeObservers()

	var pendingCmds []CommandEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingAdmin []adminSnapshotReq
	var pendingTuning *tuning.Tuning

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case req := <-w.stateReq:
			w.handleStateReq(req)
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case t := <-w.config:
			pendingTuning = &t
		case env := <-w.inbox:
			pendingCmds = append(pendingCmds, env)
		case <-ticker.C:
			if pendingTuning != nil {
				if w.ApplyTuning(*pendingTuning) {
					ticker.Reset(tickInterval(w.cfg.Tuning.TickRateHz))
				}
				pendingTuning = nil
			}
			w.stepInternal(pendingJoins, pendingLeaves, pendingCmds)
			w.handleAdminSnapshotRequests(pendingAdmin)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingCmds = pendingCmds[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func tickInterval(hz int) time.Duration {
	if hz <= 0 {
		hz = 1
	}
	return time.Second / time.Duration(hz)
}

func (w *World) Stop() { close(w.stop) }

// ApplyTuning swaps in a reloaded tuning and reports whether the tick rate
// changed. Starter changes only affect later joins. Running components see
// the new ability config at once since they share it. Call it from the loop
// goroutine between ticks, or while the world is stopped.
func (w *World) ApplyTuning(t tuning.Tuning) bool {
	for _, s := range t.Starter.Abilities {
		if _, ok := w.catalogs.Lookup(s.ID); !ok {
			w.log.Warn("tuning rejected: unknown starter ability", zap.String("ability", s.ID))
			return false
		}
	}
	oldRate := w.cfg.Tuning.TickRateHz
	w.cfg.Tuning = t
	w.cfg.TuningDigest = ""
	w.cfg.applyDefaults()
	*w.abilityCfg = w.cfg.Tuning.Ability
	applied := w.cfg.Tuning
	w.appliedTuning = &applied
	w.log.Info("tuning applied", zap.Int("tick_rate_hz", w.cfg.Tuning.TickRateHz), zap.Uint64("tick", w.tick.Load()))
	return w.cfg.Tuning.TickRateHz != oldRate
}

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server. It is intended for deterministic replays/tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, cmds []CommandEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.stepInternal(joins, leaves, cmds)
	return tick, w.stateDigest(tick)
}
