package world

import (
	"time"

	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
)

func (w *World) stepInternal(joins []JoinRequest, leaves []string, cmds []CommandEnvelope) {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	w.expireAcks(nowTick)

	// Apply leaves and joins deterministically at tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if w.leaveActor(id) {
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		var resp JoinResponse
		resumed := false
		if req.ResumeToken != "" {
			resp, resumed = w.resumeActor(req)
		}
		if !resumed {
			var rec RecordedJoin
			resp, rec = w.joinActor(req)
			recordedJoins = append(recordedJoins, rec)
		}
		if req.Resp != nil {
			req.Resp <- resp
		}
	}

	for _, a := range w.actors {
		a.cmdsThisTick = 0
		a.eventsThisTick = 0
	}

	// Apply commands in server receive order (the inbox order).
	recorded := make([]CommandEnvelope, 0, len(cmds))
	for _, env := range cmds {
		a := w.actors[env.ActorID]
		if a == nil {
			continue
		}
		env.Act.ActorID = env.ActorID // trust session identity
		recorded = append(recorded, env)
		for _, res := range w.applyAct(a, env.Act, nowTick) {
			w.sendJSON(a.ID, res)
		}
	}

	dt := w.cfg.Tuning.TickSeconds()
	for _, id := range w.sortedActorIDs() {
		w.actors[id].Comp.Tick(dt)
	}

	events := w.flushEvents(nowTick)
	w.auditEvents(events)

	digest := w.stateDigest(nowTick)
	state := w.buildState(nowTick, digest)
	w.broadcastState(state)
	w.publishObservers(nowTick, recordedJoins, recordedLeaves, events, state)

	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Joins: recordedJoins, Leaves: recordedLeaves, Commands: recorded, Tuning: w.appliedTuning, Digest: digest}); err != nil {
			w.log.Warn("tick log write failed", zap.Uint64("tick", nowTick), zap.Error(err))
		}
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.Tuning.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.cfg.Tuning.SnapshotEveryTicks) == 0 {
			select {
			case w.snapshotSink <- w.ExportSnapshot(nowTick):
			default:
				// Drop snapshot if sink is backed up.
				w.log.Warn("snapshot sink full, dropping", zap.Uint64("tick", nowTick))
			}
		}
	}

	w.appliedTuning = nil

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)
	w.storeMetrics(nextTick, stepMS, events)
}

// eventKinds counts events by kind, for metrics.
func eventKinds(events []protocol.Event) map[string]int {
	out := map[string]int{}
	for _, ev := range events {
		out[ev.Kind]++
	}
	return out
}
