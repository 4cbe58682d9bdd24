package world

import "github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	TickRateHz int `json:"tick_rate_hz"`

	Actors    int `json:"actors"`
	Clients   int `json:"clients"`
	Observers int `json:"observers"`

	ActiveAbilities int `json:"active_abilities"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	// Events is the number of events of each kind in the last tick.
	Events      map[string]int `json:"events,omitempty"`
	EventCursor uint64         `json:"event_cursor"`
	DroppedSend uint64         `json:"dropped_sends"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (w *World) storeMetrics(tick uint64, stepMS float64, events []protocol.Event) {
	active := 0
	for _, a := range w.actors {
		for _, s := range a.Comp.Specs() {
			if s.IsActive() {
				active++
			}
		}
	}
	w.metrics.Store(WorldMetrics{
		Tick:            tick,
		TickRateHz:      w.cfg.Tuning.TickRateHz,
		Actors:          len(w.actors),
		Clients:         len(w.clients),
		Observers:       len(w.observers),
		ActiveAbilities: active,
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS:      stepMS,
		Events:      eventKinds(events),
		EventCursor: w.eventCursor,
		DroppedSend: w.dropped,
	})
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
