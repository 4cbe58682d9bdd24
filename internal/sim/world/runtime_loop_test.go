package world

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/persistence/snapshot"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
)

func waitAck(t *testing.T, out chan []byte, id string) protocol.AckMsg {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case b := <-out:
			base, err := protocol.DecodeBase(b)
			if err != nil || base.Type != protocol.TypeAck {
				continue
			}
			var m protocol.AckMsg
			require.NoError(t, json.Unmarshal(b, &m))
			if m.AckFor == id {
				return m
			}
		case <-deadline:
			t.Fatalf("no ack for %s", id)
		}
	}
}

func TestRun_ServesClients(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newTestWorld(t)
	sink := make(chan snapshot.SnapshotV1, 1)
	w.SetSnapshotSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	out := make(chan []byte, 1024)
	resp := make(chan JoinResponse, 1)
	w.Join() <- JoinRequest{Name: "loop", Out: out, Resp: resp}
	var jr JoinResponse
	select {
	case jr = <-resp:
	case <-time.After(5 * time.Second):
		t.Fatal("join timed out")
	}
	id := jr.Welcome.ActorID
	require.Equal(t, "A1", id)

	c := activate("sprint")
	w.Inbox() <- act(id, c)
	require.True(t, waitAck(t, out, c.ID).Accepted)

	st, err := w.RequestState(ctx)
	require.NoError(t, err)
	require.Len(t, st.Actors, 1)
	var sprint protocol.AbilityState
	for _, a := range st.Actors[0].Abilities {
		if a.Ability == "sprint" {
			sprint = a
		}
	}
	require.Equal(t, "ACTIVE", sprint.State)
	require.Equal(t, 1, sprint.ActiveCount)

	tick, err := w.RequestSnapshot(ctx)
	require.NoError(t, err)
	snap := <-sink
	require.Equal(t, tick, snap.Header.Tick)
	require.Len(t, snap.Actors, 1)

	tu := testTuning(t)
	tu.TickRateHz = 50
	require.True(t, w.UpdateTuning(tu))
	require.Eventually(t, func() bool { return w.Metrics().Tick > tick+2 }, 5*time.Second, 10*time.Millisecond)

	w.Leave() <- id
	require.Eventually(t, func() bool { return w.Metrics().Actors == 0 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRun_Stop(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newTestWorld(t)
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	w.Stop()
	require.NoError(t, <-done)
}

func TestRequestSnapshot_NoSink(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newTestWorld(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	_, err := w.RequestSnapshot(ctx)
	require.Error(t, err)

	cancel()
	<-done
}
