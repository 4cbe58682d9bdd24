package world

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/component"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/catalogs"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/tuning"
)

func testTuning(t *testing.T) tuning.Tuning {
	t.Helper()
	tu, err := tuning.Load("../../../configs/tuning.yaml")
	require.NoError(t, err)
	return tu
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	require.NoError(t, err)
	w, err := New(WorldConfig{ID: "test", Tuning: testTuning(t)}, cats, nil)
	require.NoError(t, err)
	return w
}

// joinOne joins name on the next tick and returns its actor id and outbound
// channel.
func joinOne(t *testing.T, w *World, name string) (string, chan []byte) {
	t.Helper()
	out := make(chan []byte, 256)
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: name, Out: out, Resp: resp}}, nil, nil)
	r := <-resp
	require.Empty(t, r.Err)
	return r.Welcome.ActorID, out
}

var cmdSeq int

func cmd(typ string, fill func(*protocol.Command)) protocol.Command {
	cmdSeq++
	c := protocol.Command{ID: fmt.Sprintf("c%d", cmdSeq), Type: typ}
	if fill != nil {
		fill(&c)
	}
	return c
}

func act(actorID string, cmds ...protocol.Command) CommandEnvelope {
	return CommandEnvelope{ActorID: actorID, Act: protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		ActorID:         actorID,
		Commands:        cmds,
	}}
}

func activate(ability string) protocol.Command {
	return cmd(protocol.CmdActivate, func(c *protocol.Command) { c.Ability = ability })
}

// drain decodes every queued outbound message.
func drain(out chan []byte) (acks []protocol.AckMsg, events []protocol.Event, states []protocol.StateMsg) {
	for {
		select {
		case b := <-out:
			base, err := protocol.DecodeBase(b)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeAck:
				var m protocol.AckMsg
				_ = json.Unmarshal(b, &m)
				acks = append(acks, m)
			case protocol.TypeEvent:
				var m protocol.EventMsg
				_ = json.Unmarshal(b, &m)
				events = append(events, m.Events...)
			case protocol.TypeState:
				var m protocol.StateMsg
				_ = json.Unmarshal(b, &m)
				states = append(states, m)
			}
		default:
			return
		}
	}
}

func hasEvent(events []protocol.Event, actor, ability, kind string) bool {
	for _, ev := range events {
		if ev.ActorID == actor && ev.Ability == ability && ev.Kind == kind {
			return true
		}
	}
	return false
}

func attr(t *testing.T, c *component.Component, name string) float64 {
	t.Helper()
	v, ok := c.Attribute(name)
	require.True(t, ok, "attribute %s", name)
	return v
}

func stepN(w *World, n int) {
	for i := 0; i < n; i++ {
		w.StepOnce(nil, nil, nil)
	}
}
