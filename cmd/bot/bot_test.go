package main

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/catalogs"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/tuning"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/world"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/transport/ws"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func self(health float64, abilities ...protocol.AbilityState) protocol.ActorState {
	return protocol.ActorState{
		ActorID:    "A1",
		Attributes: map[string]float64{"Health": health, "Mana": 50, "Stamina": 30},
		Abilities:  abilities,
	}
}

func commandTypes(cmds []protocol.Command) []string {
	var out []string
	for _, c := range cmds {
		out = append(out, c.Type+":"+c.Ability+c.Tag)
	}
	return out
}

func TestDecide(t *testing.T) {
	b := newBot(nil, zaptest.NewLogger(t))
	b.actorID = "A1"
	idle := []protocol.AbilityState{
		{Ability: "sprint", State: "INACTIVE"},
		{Ability: "heal", State: "INACTIVE"},
		{Ability: "charge_shot", State: "INACTIVE"},
	}

	cmds := b.decide(protocol.StateMsg{Tick: 0, Actors: []protocol.ActorState{self(100, idle...)}})
	require.Equal(t, []string{"ACTIVATE:sprint"}, commandTypes(cmds))

	require.Empty(t, b.decide(protocol.StateMsg{Tick: 5, Actors: []protocol.ActorState{self(100, idle...)}}))

	cmds = b.decide(protocol.StateMsg{Tick: 12, Actors: []protocol.ActorState{
		self(50, idle...),
		{ActorID: "A2"},
	}})
	require.Equal(t, []string{"EVENT:Event.Cast.Fireball", "ACTIVATE:heal"}, commandTypes(cmds))
	require.Equal(t, "A2", cmds[0].TargetID)

	// Heal on cooldown is skipped.
	cooling := []protocol.AbilityState{{Ability: "heal", CooldownRemaining: 1.5}}
	require.Empty(t, b.decide(protocol.StateMsg{Tick: 22, Actors: []protocol.ActorState{self(50, cooling...)}}))

	sprinting := []protocol.AbilityState{{Ability: "sprint", State: "ACTIVE", ActiveCount: 1}}
	cmds = b.decide(protocol.StateMsg{Tick: 101, Actors: []protocol.ActorState{self(100, sprinting...)}})
	require.Contains(t, commandTypes(cmds), "CONFIRM:sprint")

	// Not in the state at all.
	b.actorID = "A9"
	require.Empty(t, b.decide(protocol.StateMsg{Tick: 1000, Actors: []protocol.ActorState{self(10, idle...)}}))
}

func TestDecide_ChargeReleases(t *testing.T) {
	b := newBot(nil, zaptest.NewLogger(t))
	b.actorID = "A1"
	charging := []protocol.AbilityState{{Ability: "charge_shot", State: "ACTIVE", ActiveCount: 1}}
	cmds := b.decide(protocol.StateMsg{Tick: 40, Actors: []protocol.ActorState{self(100, charging...)}})
	require.Equal(t, []string{"CONFIRM:charge_shot"}, commandTypes(cmds))
}

func TestRun_PlaysAgainstServer(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	require.NoError(t, err)
	tu, err := tuning.Load("../../configs/tuning.yaml")
	require.NoError(t, err)
	w, err := world.New(world.WorldConfig{ID: "bot", Tuning: tu}, cats, zaptest.NewLogger(t))
	require.NoError(t, err)

	wctx, wcancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(wctx)
	}()
	srv := httptest.NewServer(ws.NewServer(w, zaptest.NewLogger(t)).Handler())
	t.Cleanup(func() {
		srv.Close()
		wcancel()
		<-done
	})

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	b, err := run(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "tester", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, "A1", b.actorID)
	require.Positive(t, b.accepted)
	require.Positive(t, b.events[protocol.EventActivated])
}

func TestRun_DialError(t *testing.T) {
	_, err := run(context.Background(), "ws://127.0.0.1:1/v1/ws", "x", false, zaptest.NewLogger(t))
	require.ErrorContains(t, err, "dial")
}
