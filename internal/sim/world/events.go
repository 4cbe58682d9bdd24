package world

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/component"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
)

// collectEvent is every component's OnEvent hook. Events are buffered until
// the end of the tick.
func (w *World) collectEvent(ev component.Event) {
	w.eventCursor++
	w.pending = append(w.pending, protocol.Event{
		Cursor:        w.eventCursor,
		Tick:          w.tick.Load(),
		Kind:          string(ev.Kind),
		ActorID:       string(ev.Actor),
		Handle:        uint32(ev.Handle),
		Ability:       ev.AbilityID,
		PredictionKey: ev.PredictionKey,
		Tags:          ev.Tags,
	})
}

// auditedKinds are the events written to the audit log. Cue traffic is
// left out.
var auditedKinds = map[string]bool{
	protocol.EventGranted:      true,
	protocol.EventRemoved:      true,
	protocol.EventActivated:    true,
	protocol.EventEnded:        true,
	protocol.EventCancelled:    true,
	protocol.EventCommitted:    true,
	protocol.EventFailed:       true,
	protocol.EventRejected:     true,
	protocol.EventClientEnd:    true,
	protocol.EventClientCancel: true,
}

func (w *World) auditEvents(events []protocol.Event) {
	if w.auditLogger == nil {
		return
	}
	for _, ev := range events {
		if !auditedKinds[ev.Kind] {
			continue
		}
		if err := w.auditLogger.WriteAudit(AuditEntry{
			Tick:          ev.Tick,
			Actor:         ev.ActorID,
			Action:        ev.Kind,
			Handle:        ev.Handle,
			Ability:       ev.Ability,
			PredictionKey: ev.PredictionKey,
			Tags:          ev.Tags,
		}); err != nil {
			w.log.Warn("audit write failed", zap.Error(err))
			return
		}
	}
}

// send queues b for a client without blocking the loop. A full queue drops
// the message.
func (w *World) send(cl *clientState, b []byte) {
	select {
	case cl.Out <- b:
	default:
		w.dropped++
	}
}

func (w *World) sendJSON(actorID string, v any) {
	cl := w.clients[actorID]
	if cl == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		w.log.Warn("marshal outbound", zap.Error(err))
		return
	}
	w.send(cl, b)
}

// flushEvents sends this tick's events to every client and returns them.
func (w *World) flushEvents(nowTick uint64) []protocol.Event {
	events := w.pending
	w.pending = nil
	if len(events) == 0 || len(w.clients) == 0 {
		return events
	}
	msg := protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		WorldID:         w.cfg.ID,
		Events:          events,
		NextCursor:      w.eventCursor + 1,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		w.log.Warn("marshal events", zap.Error(err))
		return events
	}
	for _, id := range w.sortedActorIDs() {
		if cl := w.clients[id]; cl != nil {
			w.send(cl, b)
		}
	}
	return events
}

func (w *World) buildState(nowTick uint64, digest string) protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		WorldID:         w.cfg.ID,
		StateDigest:     digest,
	}
	for _, id := range w.sortedActorIDs() {
		msg.Actors = append(msg.Actors, actorState(w.actors[id].Comp.View()))
	}
	return msg
}

func actorState(v component.View) protocol.ActorState {
	s := protocol.ActorState{
		ActorID:    string(v.Actor),
		OwnedTags:  v.OwnedTags,
		Blocked:    v.Blocked,
		Attributes: v.Attributes,
		Cues:       v.Cues,
		Inhibited:  v.Inhibited,
	}
	if s.OwnedTags == nil {
		s.OwnedTags = []string{}
	}
	if s.Attributes == nil {
		s.Attributes = map[string]float64{}
	}
	s.Abilities = make([]protocol.AbilityState, 0, len(v.Specs))
	for _, sv := range v.Specs {
		s.Abilities = append(s.Abilities, protocol.AbilityState{
			Handle:            uint32(sv.Handle),
			Ability:           sv.AbilityID,
			Level:             sv.Level,
			InputID:           sv.InputID,
			ActiveCount:       int(sv.ActiveCount),
			State:             string(sv.State),
			CooldownRemaining: sv.CooldownRemaining,
		})
	}
	return s
}

// broadcastState sends the state to every client.
func (w *World) broadcastState(msg protocol.StateMsg) {
	if len(w.clients) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		w.log.Warn("marshal state", zap.Error(err))
		return
	}
	for _, id := range w.sortedActorIDs() {
		if cl := w.clients[id]; cl != nil {
			w.send(cl, b)
		}
	}
}
