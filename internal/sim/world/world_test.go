package world

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/tuning"
)

func TestJoin_GrantsStarter(t *testing.T) {
	w := newTestWorld(t)
	out := make(chan []byte, 64)
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: "  bot  ", Out: out, Resp: resp}}, nil, nil)
	r := <-resp

	require.Equal(t, "A1", r.Welcome.ActorID)
	require.Equal(t, "test", r.Welcome.WorldParams.WorldID)
	require.Equal(t, 20, r.Welcome.WorldParams.TickRateHz)
	require.Equal(t, 7, r.Welcome.Catalogs.Abilities.Count)
	require.Equal(t, w.catalogs.Abilities.Digest, r.Welcome.Catalogs.Abilities.Digest)
	require.NotEmpty(t, r.Welcome.Catalogs.TuningDigest)
	require.NotEmpty(t, r.Welcome.ResumeToken)
	require.Len(t, r.Catalogs, 2)
	require.Equal(t, "bot", w.actors["A1"].Name)

	c := w.Component("A1")
	require.Len(t, c.Specs(), 7)
	require.Equal(t, 100.0, attr(t, c, "Health"))
	require.Equal(t, 1, c.FindSpecByAbility("fireball").InputID)

	_, events, states := drain(out)
	granted := 0
	for _, ev := range events {
		if ev.Kind == protocol.EventGranted {
			granted++
		}
	}
	require.Equal(t, 7, granted)
	require.Len(t, states, 1)
	require.Len(t, states[0].Actors, 1)
	require.Len(t, states[0].Actors[0].Abilities, 7)
}

func TestResume_ReattachesLiveActor(t *testing.T) {
	w := newTestWorld(t)
	id, _ := joinOne(t, w, "bot")
	token := w.actors[id].ResumeToken

	out := make(chan []byte, 64)
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{ResumeToken: token, Out: out, Resp: resp}}, nil, nil)
	r := <-resp
	require.Equal(t, id, r.Welcome.ActorID)
	require.Len(t, w.actors, 1)

	_, _, states := drain(out)
	require.NotEmpty(t, states)
}

func TestFireballChain(t *testing.T) {
	w := newTestWorld(t)
	a1, out := joinOne(t, w, "caster")
	a2, _ := joinOne(t, w, "target")
	drain(out)

	ev := cmd(protocol.CmdEvent, func(c *protocol.Command) {
		c.Tag = "Event.Cast.Fireball"
		c.TargetID = a2
		c.Magnitude = 1
	})
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, ev)})

	c1, c2 := w.Component(a1), w.Component(a2)
	require.Equal(t, 40.0, attr(t, c1, "Mana"))
	require.Equal(t, 90.0, attr(t, c2, "Health"))
	require.True(t, c1.HasTag("Cooldown.Fireball"))
	require.True(t, c2.HasTag("Status.Burning"))
	// Burning starts the passive aura on the target.
	require.True(t, c2.HasTag("Status.Aura.Smoke"))
	// The hit triggered the target's parry, which stuns the caster.
	require.True(t, c2.HasTag("Cooldown.Parry"))
	require.True(t, c1.HasTag("Status.Stunned"))

	acks, events, _ := drain(out)
	require.Len(t, acks, 1)
	require.True(t, acks[0].Accepted)
	require.True(t, hasEvent(events, a1, "fireball", protocol.EventActivated))
	require.True(t, hasEvent(events, a1, "fireball", protocol.EventCommitted))
	require.True(t, hasEvent(events, a1, "fireball", protocol.EventEnded))
	require.True(t, hasEvent(events, a2, "parry", protocol.EventActivated))
	require.True(t, hasEvent(events, a2, "smoke_aura", protocol.EventActivated))

	// Stunned casters can't activate.
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("heal"))})
	acks, events, _ = drain(out)
	require.Len(t, acks, 1)
	require.False(t, acks[0].Accepted)
	require.Equal(t, protocol.ErrRejected, acks[0].Code)
	require.True(t, hasEvent(events, a1, "heal", protocol.EventFailed))

	// Burning wears off after 3s and takes the aura with it.
	stepN(w, 70)
	require.False(t, c2.HasTag("Status.Burning"))
	require.False(t, c2.HasTag("Status.Aura.Smoke"))
	require.False(t, c1.HasTag("Status.Stunned"))
	_, events, _ = drain(out)
	require.True(t, hasEvent(events, a2, "smoke_aura", protocol.EventCancelled))
}

func TestChargeShot_ConfirmReleases(t *testing.T) {
	w := newTestWorld(t)
	a1, out := joinOne(t, w, "bot")
	c := w.Component(a1)

	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("charge_shot"))})
	spec := c.FindSpecByAbility("charge_shot")
	require.True(t, spec.IsActive())
	require.True(t, c.HasTag("Status.Charging"))
	require.Equal(t, []string{"Cue.Charge"}, c.ActiveCues())
	// Cost is only paid at commit, after the windup.
	require.Equal(t, 50.0, attr(t, c, "Mana"))

	stepN(w, 25)
	require.Equal(t, 45.0, attr(t, c, "Mana"))
	require.True(t, spec.IsActive())

	confirm := cmd(protocol.CmdConfirm, func(c *protocol.Command) { c.Ability = "charge_shot" })
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, confirm)})
	require.False(t, spec.IsActive())
	require.False(t, c.HasTag("Status.Charging"))
	require.Empty(t, c.ActiveCues())

	_, events, _ := drain(out)
	require.True(t, hasEvent(events, a1, "charge_shot", protocol.EventEnded))
	require.False(t, hasEvent(events, a1, "charge_shot", protocol.EventCancelled))
}

func TestChargeShot_DeclineCancels(t *testing.T) {
	w := newTestWorld(t)
	a1, out := joinOne(t, w, "bot")
	c := w.Component(a1)

	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("charge_shot"))})
	spec := c.FindSpecByAbility("charge_shot")
	stepN(w, 25)
	require.True(t, spec.IsActive())

	decline := cmd(protocol.CmdDecline, func(c *protocol.Command) { c.Ability = "charge_shot" })
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, decline)})
	require.False(t, spec.IsActive())
	require.False(t, c.HasTag("Status.Charging"))
	require.Empty(t, c.ActiveCues())

	acks, events, _ := drain(out)
	require.True(t, acks[len(acks)-1].Accepted)
	require.True(t, hasEvent(events, a1, "charge_shot", protocol.EventCancelled))
	require.False(t, hasEvent(events, a1, "charge_shot", protocol.EventEnded))
}

func TestChargeShot_DeclineDuringWindupIsKept(t *testing.T) {
	w := newTestWorld(t)
	a1, out := joinOne(t, w, "bot")
	c := w.Component(a1)

	decline := cmd(protocol.CmdDecline, func(c *protocol.Command) { c.Ability = "charge_shot" })
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("charge_shot"))})
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, decline)})
	spec := c.FindSpecByAbility("charge_shot")
	require.True(t, spec.IsActive())

	// The release wait starts after the windup and finds the decline waiting.
	stepN(w, 30)
	require.False(t, spec.IsActive())
	_, events, _ := drain(out)
	require.True(t, hasEvent(events, a1, "charge_shot", protocol.EventCancelled))
}

func TestChargeShot_CancelsAndBlocksSprint(t *testing.T) {
	w := newTestWorld(t)
	a1, out := joinOne(t, w, "bot")
	c := w.Component(a1)

	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("sprint"))})
	sprint := c.FindSpecByAbility("sprint")
	require.True(t, sprint.IsActive())
	require.Equal(t, 25.0, attr(t, c, "Stamina"))

	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("charge_shot"))})
	require.False(t, sprint.IsActive())
	require.True(t, c.AreAbilityTagsBlocked(tags.New("Ability.Movement.Sprint")))

	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("sprint"))})
	require.False(t, sprint.IsActive())

	acks, events, _ := drain(out)
	require.Len(t, acks, 3)
	require.True(t, acks[0].Accepted)
	require.True(t, acks[1].Accepted)
	require.False(t, acks[2].Accepted)
	require.True(t, hasEvent(events, a1, "sprint", protocol.EventCancelled))
	require.True(t, hasEvent(events, a1, "sprint", protocol.EventFailed))
}

func TestEndCommand(t *testing.T) {
	w := newTestWorld(t)
	a1, out := joinOne(t, w, "bot")
	c := w.Component(a1)

	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("sprint"))})
	require.True(t, c.HasTag("Status.Sprinting"))

	end := cmd(protocol.CmdEnd, func(c *protocol.Command) { c.Ability = "sprint" })
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, end)})
	require.False(t, c.FindSpecByAbility("sprint").IsActive())
	require.False(t, c.HasTag("Status.Sprinting"))

	// Nothing left to end.
	again := cmd(protocol.CmdEnd, func(c *protocol.Command) { c.Ability = "sprint" })
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, again)})

	acks, events, _ := drain(out)
	require.Len(t, acks, 3)
	require.True(t, acks[1].Accepted)
	require.Equal(t, protocol.ErrStale, acks[2].Code)
	require.True(t, hasEvent(events, a1, "sprint", protocol.EventEnded))
}

func TestRally_ServerTerminationOnly(t *testing.T) {
	w := newTestWorld(t)
	a1, out := joinOne(t, w, "bot")
	c := w.Component(a1)

	cancel := cmd(protocol.CmdCancel, func(c *protocol.Command) { c.Ability = "rally" })
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("rally"), cancel)})
	require.Equal(t, 115.0, attr(t, c, "Health"))

	acks, events, _ := drain(out)
	require.Len(t, acks, 2)
	require.True(t, acks[0].Accepted)
	require.Equal(t, protocol.ErrNoPermission, acks[1].Code)
	require.True(t, hasEvent(events, a1, "rally", protocol.EventEnded))
}

func TestCommandErrors(t *testing.T) {
	w := newTestWorld(t)
	a1, out := joinOne(t, w, "bot")

	w.StepOnce(nil, nil, []CommandEnvelope{act(a1,
		activate("meteor"),
		cmd(protocol.CmdActivate, nil),
		cmd(protocol.CmdCancelTasks, func(c *protocol.Command) { c.Ability = "charge_shot"; c.TaskName = "windup" }),
	)})
	acks, _, _ := drain(out)
	require.Len(t, acks, 3)
	require.Equal(t, protocol.ErrUnknownAbility, acks[0].Code)
	require.Equal(t, protocol.ErrBadRequest, acks[1].Code)
	require.Equal(t, protocol.ErrStale, acks[2].Code)
	for _, a := range acks {
		require.True(t, protocol.IsKnownCode(a.Code))
	}
}

func TestRateLimit(t *testing.T) {
	w := newTestWorld(t)
	a1, out := joinOne(t, w, "bot")

	var cmds []protocol.Command
	for i := 0; i < 9; i++ {
		cmds = append(cmds, cmd(protocol.CmdInhibit, nil))
	}
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, cmds...)})
	acks, _, _ := drain(out)
	require.Len(t, acks, 9)
	for _, a := range acks[:8] {
		require.True(t, a.Accepted)
	}
	require.Equal(t, protocol.ErrRateLimit, acks[8].Code)

	// Counters reset each tick.
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, cmd(protocol.CmdInhibit, nil))})
	acks, _, _ = drain(out)
	require.True(t, acks[0].Accepted)
}

func TestDuplicateCommandID_ReturnsFirstAck(t *testing.T) {
	w := newTestWorld(t)
	a1, out := joinOne(t, w, "bot")
	c := w.Component(a1)

	heal := activate("heal")
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, heal)})
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, heal)})
	require.Equal(t, 45.0, attr(t, c, "Mana"))

	acks, _, _ := drain(out)
	require.Len(t, acks, 2)
	require.Equal(t, acks[0], acks[1])
	require.True(t, acks[1].Accepted)
}

func TestInputsAndInhibit(t *testing.T) {
	w := newTestWorld(t)
	a1, _ := joinOne(t, w, "bot")
	c := w.Component(a1)
	in := 3

	block := cmd(protocol.CmdBlockInput, func(c *protocol.Command) { c.InputID = &in })
	press := cmd(protocol.CmdPressInput, func(c *protocol.Command) { c.InputID = &in })
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, block, press)})
	require.True(t, c.IsInputBlocked(3))
	require.False(t, c.FindSpecByAbility("sprint").IsActive())

	unblock := cmd(protocol.CmdUnblockInput, func(c *protocol.Command) { c.InputID = &in })
	inhibit := cmd(protocol.CmdInhibit, func(c *protocol.Command) { c.Inhibit = true })
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, unblock, inhibit)})
	require.False(t, c.IsInputBlocked(3))
	require.True(t, c.UserActivationInhibited())
}

func TestLeave_DestroysActiveState(t *testing.T) {
	w := newTestWorld(t)
	a1, _ := joinOne(t, w, "bot")
	a2, out2 := joinOne(t, w, "watcher")

	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("sprint"))})
	require.True(t, w.Component(a1).FindSpecByAbility("sprint").IsActive())
	drain(out2)

	w.StepOnce(nil, []string{a1}, nil)
	require.Nil(t, w.Component(a1))
	_, ok := w.reg.Component(ability.ActorID(a1))
	require.False(t, ok)

	_, events, states := drain(out2)
	require.True(t, hasEvent(events, a1, "sprint", protocol.EventCancelled))
	require.Len(t, states[len(states)-1].Actors, 1)
	require.Equal(t, a2, states[len(states)-1].Actors[0].ActorID)

	// Commands for departed actors are ignored.
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("sprint"))})
}

func TestApplyTuning_SharedAbilityConfig(t *testing.T) {
	w := newTestWorld(t)
	a1, _ := joinOne(t, w, "bot")
	c := w.Component(a1)

	tu := testTuning(t)
	tu.Ability.IgnoreCosts = true
	require.False(t, w.ApplyTuning(tu))

	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("heal"))})
	require.Equal(t, 50.0, attr(t, c, "Mana"))
	require.Equal(t, 115.0, attr(t, c, "Health"))

	tu.TickRateHz = 40
	require.True(t, w.ApplyTuning(tu))
	require.Equal(t, 40, w.TickRateHz())

	tu.Starter.Abilities = append(tu.Starter.Abilities, tuning.StarterAbility{ID: "meteor", Level: 1})
	require.False(t, w.ApplyTuning(tu))
	require.Equal(t, 40, w.TickRateHz())
}

func TestEventRateLimit(t *testing.T) {
	w := newTestWorld(t)
	a1, out := joinOne(t, w, "bot")

	var cmds []protocol.Command
	for i := 0; i < 5; i++ {
		cmds = append(cmds, cmd(protocol.CmdEvent, func(c *protocol.Command) { c.Tag = "Event.Noop" }))
	}
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, cmds...)})
	acks, _, _ := drain(out)
	require.Len(t, acks, 5)
	require.Equal(t, protocol.ErrRateLimit, acks[4].Code)
	require.True(t, acks[3].Accepted)
}

func TestMetrics(t *testing.T) {
	w := newTestWorld(t)
	a1, _ := joinOne(t, w, "bot")
	w.StepOnce(nil, nil, []CommandEnvelope{act(a1, activate("sprint"))})

	m := w.Metrics()
	require.Equal(t, uint64(2), m.Tick)
	require.Equal(t, 1, m.Actors)
	require.Equal(t, 1, m.ActiveAbilities)
	require.Equal(t, 1, m.Events[protocol.EventActivated])
}
