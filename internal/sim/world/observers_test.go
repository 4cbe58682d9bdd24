package world

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/observerproto"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
)

func nextTick(t *testing.T, out chan []byte) observerproto.TickMsg {
	t.Helper()
	select {
	case b := <-out:
		var m observerproto.TickMsg
		require.NoError(t, json.Unmarshal(b, &m))
		require.Equal(t, observerproto.TypeTick, m.Type)
		return m
	default:
		t.Fatal("no observer message")
		return observerproto.TickMsg{}
	}
}

func TestObservers_FilterAndState(t *testing.T) {
	w := newTestWorld(t)
	all := make(chan []byte, 16)
	onlyA2 := make(chan []byte, 16)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", Out: all})
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "O2", Out: onlyA2, Filter: ObserverFilter{
		Actors:     []string{"A2"},
		Kinds:      []string{protocol.EventActivated},
		StateEvery: 2,
	}})

	a1, _ := joinOne(t, w, "alice")
	m := nextTick(t, all)
	require.Equal(t, uint64(0), m.Tick)
	require.Equal(t, []observerproto.JoinInfo{{ActorID: a1, Name: "alice"}}, m.Joins)
	require.NotEmpty(t, m.StateDigest)
	require.Len(t, m.Actors, 1)
	require.True(t, hasEvent(m.Events, a1, "sprint", protocol.EventGranted))

	m = nextTick(t, onlyA2)
	require.Empty(t, m.Events)
	require.Empty(t, m.Actors)

	a2, _ := joinOne(t, w, "bob")
	nextTick(t, all)
	m = nextTick(t, onlyA2)
	require.Equal(t, uint64(1), m.Tick)
	require.Empty(t, m.Actors, "odd tick carries no state")

	w.StepOnce(nil, nil, []CommandEnvelope{act(a2, activate("sprint")), act(a1, activate("sprint"))})
	nextTick(t, all)
	m = nextTick(t, onlyA2)
	require.Len(t, m.Events, 1)
	require.Equal(t, a2, m.Events[0].ActorID)
	require.Equal(t, protocol.EventActivated, m.Events[0].Kind)
	require.Len(t, m.Actors, 1)
	require.Equal(t, a2, m.Actors[0].ActorID)

	w.handleObserverSubscribe(ObserverSubscribeRequest{SessionID: "O2"})
	w.StepOnce(nil, []string{a1}, nil)
	m = nextTick(t, onlyA2)
	require.Equal(t, []string{a1}, m.Leaves)
	require.Len(t, m.Actors, 1)
	require.True(t, hasEvent(m.Events, a1, "sprint", protocol.EventCancelled))

	w.handleObserverLeave("O2")
	_, open := <-onlyA2
	require.False(t, open)
	w.handleObserverLeave("O2")

	w.closeObservers()
	require.Empty(t, w.observers)
}

func TestObservers_FullQueueDrops(t *testing.T) {
	w := newTestWorld(t)
	out := make(chan []byte, 1)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", Out: out})
	stepN(w, 3)
	require.Len(t, out, 1)
	require.Equal(t, uint64(2), w.dropped)
}
