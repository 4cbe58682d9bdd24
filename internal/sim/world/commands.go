package world

import (
	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/component"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
)

func ack(cmdID string, tick uint64, accepted bool, code, msg string) protocol.AckMsg {
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          cmdID,
		Accepted:        accepted,
		Code:            code,
		Message:         msg,
		ServerTick:      tick,
	}
}

// applyAct runs every command of act against the sender's component, in
// order, and returns one ACK per command.
func (w *World) applyAct(a *Actor, act protocol.ActMsg, nowTick uint64) []protocol.AckMsg {
	out := make([]protocol.AckMsg, 0, len(act.Commands))
	for _, cmd := range act.Commands {
		if cmd.ID != "" {
			if prev, dup := w.lookupAck(a.ID, cmd.ID, nowTick); dup {
				out = append(out, prev)
				continue
			}
		}
		res := w.applyCommand(a, cmd, nowTick)
		if cmd.ID != "" {
			res, _ = w.rememberAck(a.ID, cmd.ID, nowTick, res)
		}
		out = append(out, res)
	}
	return out
}

func (w *World) applyCommand(a *Actor, cmd protocol.Command, nowTick uint64) protocol.AckMsg {
	if !cmd.Valid() {
		return ack(cmd.ID, nowTick, false, protocol.ErrBadRequest, "invalid "+cmd.Type)
	}
	a.cmdsThisTick++
	if a.cmdsThisTick > w.cfg.Tuning.RateLimits.CommandsPerTick {
		return ack(cmd.ID, nowTick, false, protocol.ErrRateLimit, "too many commands this tick")
	}
	c := a.Comp

	switch cmd.Type {
	case protocol.CmdActivateByTag:
		ok := c.TryActivateAbilitiesByTag(tags.FromStrings(cmd.Tags), true)
		return w.outcome(a, cmd, nowTick, ok)

	case protocol.CmdEvent:
		a.eventsThisTick++
		if a.eventsThisTick > w.cfg.Tuning.RateLimits.EventsPerTick {
			return ack(cmd.ID, nowTick, false, protocol.ErrRateLimit, "too many events this tick")
		}
		target := ability.ActorID(cmd.TargetID)
		payload := &ability.EventData{
			InstigatorID:   ability.ActorID(a.ID),
			TargetID:       target,
			InstigatorTags: c.OwnedTags(),
			Magnitude:      cmd.Magnitude,
		}
		if t := w.actors[cmd.TargetID]; t != nil {
			payload.TargetTags = t.Comp.OwnedTags()
		}
		c.HandleGameplayEvent(tags.Tag(cmd.Tag), payload)
		return ack(cmd.ID, nowTick, true, "", "")

	case protocol.CmdInhibit:
		c.SetUserAbilityActivationInhibited(cmd.Inhibit)
		return ack(cmd.ID, nowTick, true, "", "")

	case protocol.CmdBlockInput:
		c.BlockAbilityByInputID(*cmd.InputID)
		return ack(cmd.ID, nowTick, true, "", "")

	case protocol.CmdUnblockInput:
		c.UnblockAbilityByInputID(*cmd.InputID)
		return ack(cmd.ID, nowTick, true, "", "")

	case protocol.CmdPressInput:
		if c.IsInputBlocked(*cmd.InputID) {
			return ack(cmd.ID, nowTick, false, protocol.ErrRejected, "input blocked")
		}
		c.PressInput(*cmd.InputID)
		return ack(cmd.ID, nowTick, true, "", "")

	case protocol.CmdReleaseInput:
		c.ReleaseInput(*cmd.InputID)
		return ack(cmd.ID, nowTick, true, "", "")
	}

	spec := resolveSpec(c, cmd)
	if spec == nil {
		return ack(cmd.ID, nowTick, false, protocol.ErrUnknownAbility, "no granted ability matches")
	}
	h := spec.Handle

	switch cmd.Type {
	case protocol.CmdActivate:
		var ok bool
		if a.LocallyControlled {
			ok = c.TryActivateAbility(h, true)
		} else {
			ok = c.ServerTryActivateAbility(h, spec.InputPressed, cmd.PredictionKey)
		}
		return w.outcome(a, cmd, nowTick, ok)

	case protocol.CmdEnd, protocol.CmdCancel:
		if sec := spec.Def.NetSecurity; sec == ability.ServerOnlyTermination || sec == ability.SecurityServerOnly {
			return ack(cmd.ID, nowTick, false, protocol.ErrNoPermission, "ability can only be ended by the server")
		}
		key, ok := activationKey(spec, cmd.PredictionKey)
		if !ok {
			return ack(cmd.ID, nowTick, false, protocol.ErrStale, "ability not active")
		}
		act := ability.ActivationInfo{PredictionKey: key}
		if cmd.Type == protocol.CmdEnd {
			c.ServerEndAbility(h, act)
		} else {
			c.ServerCancelAbility(h, act)
		}
		return ack(cmd.ID, nowTick, true, "", "")

	case protocol.CmdConfirm, protocol.CmdDecline:
		key, ok := activationKey(spec, cmd.PredictionKey)
		if !ok && spec.Def.Instancing != ability.NonInstanced {
			// A confirm can arrive before the activation it belongs to; keep
			// it for the task that will ask.
			key = cmd.PredictionKey
		}
		ev := component.ReplicatedConfirm
		if cmd.Type == protocol.CmdDecline {
			ev = component.ReplicatedCancel
		}
		c.InvokeReplicatedEvent(ev, h, key)
		return ack(cmd.ID, nowTick, true, "", "")

	case protocol.CmdCancelTasks:
		n := 0
		for _, inst := range spec.AbilityInstances() {
			if !inst.IsActive() {
				continue
			}
			if cmd.PredictionKey != 0 && inst.ActivationInfo().PredictionKey != cmd.PredictionKey {
				continue
			}
			inst.CancelTaskByInstanceName(cmd.TaskName)
			n++
		}
		if n == 0 {
			return ack(cmd.ID, nowTick, false, protocol.ErrStale, "no active instance")
		}
		return ack(cmd.ID, nowTick, true, "", "")
	}
	return ack(cmd.ID, nowTick, false, protocol.ErrBadRequest, "unknown command "+cmd.Type)
}

func (w *World) outcome(a *Actor, cmd protocol.Command, nowTick uint64, ok bool) protocol.AckMsg {
	if ok {
		return ack(cmd.ID, nowTick, true, "", "")
	}
	w.log.Debug("command rejected", zap.String("actor", a.ID), zap.String("cmd", cmd.Type), zap.String("id", cmd.ID))
	return ack(cmd.ID, nowTick, false, protocol.ErrRejected, "")
}

// resolveSpec finds the granted spec a command names. Handle wins over
// ability id.
func resolveSpec(c *component.Component, cmd protocol.Command) *ability.Spec {
	if cmd.Handle != 0 {
		return c.FindSpec(ability.Handle(cmd.Handle))
	}
	return c.FindSpecByAbility(cmd.Ability)
}

// activationKey picks the prediction key of the activation a command is
// about. Zero means the only active one.
func activationKey(spec *ability.Spec, key uint32) (uint32, bool) {
	if !spec.IsActive() {
		return 0, false
	}
	if key != 0 {
		return key, true
	}
	if spec.Def.Instancing == ability.NonInstanced {
		return 0, true
	}
	var found uint32
	n := 0
	for _, inst := range spec.AbilityInstances() {
		if inst.IsActive() {
			found = inst.ActivationInfo().PredictionKey
			n++
		}
	}
	return found, n == 1
}
