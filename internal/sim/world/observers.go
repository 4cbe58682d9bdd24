package world

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/observerproto"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
)

// ObserverFilter narrows what an observer receives.
type ObserverFilter struct {
	Actors     []string
	Kinds      []string
	StateEvery int
}

type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
	Filter    ObserverFilter
}

type ObserverSubscribeRequest struct {
	SessionID string
	Filter    ObserverFilter
}

type observer struct {
	out        chan []byte
	actors     map[string]bool
	kinds      map[string]bool
	stateEvery uint64
}

func newObserver(out chan []byte, f ObserverFilter) *observer {
	o := &observer{out: out}
	o.apply(f)
	return o
}

func (o *observer) apply(f ObserverFilter) {
	o.actors = set(f.Actors)
	o.kinds = set(f.Kinds)
	o.stateEvery = 1
	if f.StateEvery > 1 {
		o.stateEvery = uint64(f.StateEvery)
	}
}

func set(xs []string) map[string]bool {
	if len(xs) == 0 {
		return nil
	}
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

func (o *observer) wantsActor(id string) bool { return o.actors == nil || o.actors[id] }

func (o *observer) wantsEvent(ev protocol.Event) bool {
	return o.wantsActor(ev.ActorID) && (o.kinds == nil || o.kinds[ev.Kind])
}

// CatalogRefs describes the loaded catalogs. Catalogs never change after
// New, so it is safe from any goroutine.
func (w *World) CatalogRefs() protocol.CatalogDigests {
	return protocol.CatalogDigests{
		Abilities: protocol.DigestRef{Digest: w.catalogs.Abilities.Digest, Count: len(w.catalogs.Abilities.IDs)},
		Effects:   protocol.DigestRef{Digest: w.catalogs.Effects.Digest, Count: len(w.catalogs.Effects.ByID)},
	}
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string                        { return w.observerLeave }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }

// Observers never touch simulation state, so they are handled as they
// arrive rather than at the tick boundary.
func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	w.observers[req.SessionID] = newObserver(req.Out, req.Filter)
	w.log.Info("observer joined", zap.String("session", req.SessionID))
}

func (w *World) handleObserverLeave(id string) {
	o := w.observers[id]
	if o == nil {
		return
	}
	delete(w.observers, id)
	close(o.out)
	w.log.Info("observer left", zap.String("session", id))
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	if o := w.observers[req.SessionID]; o != nil {
		o.apply(req.Filter)
	}
}

// closeObservers ends every observer stream. Called when the loop exits.
func (w *World) closeObservers() {
	for id := range w.observers {
		w.handleObserverLeave(id)
	}
}

func (w *World) publishObservers(nowTick uint64, joins []RecordedJoin, leaves []string, events []protocol.Event, state protocol.StateMsg) {
	if len(w.observers) == 0 {
		return
	}
	var joinInfo []observerproto.JoinInfo
	for _, j := range joins {
		joinInfo = append(joinInfo, observerproto.JoinInfo{ActorID: j.ActorID, Name: j.Name})
	}
	for _, o := range w.observers {
		msg := observerproto.TickMsg{
			Type:            observerproto.TypeTick,
			ProtocolVersion: observerproto.Version,
			Tick:            nowTick,
			StateDigest:     state.StateDigest,
			Joins:           joinInfo,
			Leaves:          leaves,
		}
		for _, ev := range events {
			if o.wantsEvent(ev) {
				msg.Events = append(msg.Events, ev)
			}
		}
		if nowTick%o.stateEvery == 0 {
			for _, a := range state.Actors {
				if o.wantsActor(a.ActorID) {
					msg.Actors = append(msg.Actors, a)
				}
			}
		}
		b, err := json.Marshal(msg)
		if err != nil {
			w.log.Warn("marshal observer tick", zap.Error(err))
			return
		}
		select {
		case o.out <- b:
		default:
			w.dropped++
		}
	}
}
