package world

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
)

type memTickLog struct{ entries []TickLogEntry }

func (m *memTickLog) WriteTick(e TickLogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type memAudit struct{ entries []AuditEntry }

func (m *memAudit) WriteAudit(e AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

// script drives two actors through a fixed sequence of commands.
func script(tick int, a1, a2 string) []CommandEnvelope {
	switch tick {
	case 1:
		return []CommandEnvelope{act(a1, activate("sprint"))}
	case 2:
		return []CommandEnvelope{act(a2, cmd(protocol.CmdEvent, func(c *protocol.Command) {
			c.Tag = "Event.Cast.Fireball"
			c.TargetID = a1
		}))}
	case 5:
		return []CommandEnvelope{act(a2, activate("charge_shot"))}
	case 40:
		return []CommandEnvelope{act(a2, cmd(protocol.CmdConfirm, func(c *protocol.Command) { c.Ability = "charge_shot" }))}
	case 50:
		return []CommandEnvelope{act(a1, activate("heal"))}
	}
	return nil
}

func runScript(t *testing.T, w *World) []string {
	t.Helper()
	a1, _ := joinOne(t, w, "one")
	a2, _ := joinOne(t, w, "two")
	var digests []string
	for i := 0; i < 120; i++ {
		_, d := w.StepOnce(nil, nil, script(i, a1, a2))
		digests = append(digests, d)
	}
	return digests
}

func TestDeterministicDigests(t *testing.T) {
	d1 := runScript(t, newTestWorld(t))
	d2 := runScript(t, newTestWorld(t))
	require.Equal(t, d1, d2)

	seen := map[string]bool{}
	for _, d := range d1 {
		seen[d] = true
	}
	require.Greater(t, len(seen), 10)
}

func TestTickLogAndAudit(t *testing.T) {
	w := newTestWorld(t)
	tl := &memTickLog{}
	au := &memAudit{}
	w.SetTickLogger(tl)
	w.SetAuditLogger(au)

	a1, _ := joinOne(t, w, "one")
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("sprint"))})
	w.StepOnce(nil, []string{a1}, nil)

	require.Len(t, tl.entries, 3)
	require.Len(t, tl.entries[0].Joins, 1)
	require.Equal(t, a1, tl.entries[0].Joins[0].ActorID)
	require.Len(t, tl.entries[1].Commands, 1)
	require.Equal(t, []string{a1}, tl.entries[2].Leaves)
	for i, e := range tl.entries {
		require.Equal(t, uint64(i), e.Tick)
		require.NotEmpty(t, e.Digest)
	}

	var actions []string
	for _, e := range au.entries {
		if e.Ability == "sprint" {
			actions = append(actions, e.Action)
		}
	}
	require.Contains(t, actions, protocol.EventGranted)
	require.Contains(t, actions, protocol.EventActivated)
	require.Contains(t, actions, protocol.EventCancelled)
	require.Contains(t, actions, protocol.EventRemoved)
}
