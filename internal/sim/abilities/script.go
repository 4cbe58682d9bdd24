// Package abilities turns catalog step lists into ability behaviors.
package abilities

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/effects"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/tasks"
)

type Op string

const (
	OpCommit         Op = "COMMIT"
	OpCommitCost     Op = "COMMIT_COST"
	OpCommitCooldown Op = "COMMIT_COOLDOWN"
	OpAddCue         Op = "ADD_CUE"
	OpRemoveCue      Op = "REMOVE_CUE"
	OpExecuteCue     Op = "EXECUTE_CUE"
	OpWaitDelay      Op = "WAIT_DELAY"
	OpWaitEvent      Op = "WAIT_EVENT"
	OpWaitConfirm    Op = "WAIT_CONFIRM"
	OpSendEvent      Op = "SEND_EVENT"
	OpApplyEffect    Op = "APPLY_EFFECT"
	OpEnd            Op = "END"
	OpCancel         Op = "CANCEL"
)

func (o Op) waits() bool {
	return o == OpWaitDelay || o == OpWaitEvent || o == OpWaitConfirm
}

// Target picks the actor SEND_EVENT and APPLY_EFFECT act on.
type Target string

const (
	TargetSelf       Target = "SELF"
	TargetInstigator Target = "INSTIGATOR"
	TargetEvent      Target = "EVENT_TARGET"
)

type Step struct {
	Op          Op       `json:"op"`
	Tag         tags.Tag `json:"tag,omitempty"`
	Name        string   `json:"name,omitempty"`
	Seconds     float64  `json:"seconds,omitempty"`
	Effect      string   `json:"effect,omitempty"`
	Target      Target   `json:"target,omitempty"`
	Magnitude   float64  `json:"magnitude,omitempty"`
	RemoveOnEnd bool     `json:"remove_on_end,omitempty"`
	// Force skips the cooldown check of COMMIT_COOLDOWN.
	Force bool `json:"force,omitempty"`
}

// EffectDef is an effect APPLY_EFFECT can put on an actor: instant
// attribute modifiers and an optional timed tag grant.
type EffectDef struct {
	ID          string                `json:"id"`
	Modifiers   []ability.Modifier    `json:"modifiers,omitempty"`
	GrantedTags tags.Container        `json:"granted_tags,omitempty"`
	Duration    ability.ScalableFloat `json:"duration"`
}

// AttributeGate fails activation while Attribute is below Min.
type AttributeGate struct {
	Attribute string   `json:"attribute"`
	Min       float64  `json:"min"`
	FailTag   tags.Tag `json:"fail_tag,omitempty"`
}

// Program is the scripted part of one ability definition.
type Program struct {
	Steps   []Step          `json:"script,omitempty"`
	Require []AttributeGate `json:"require,omitempty"`
	// RespondMinMagnitude filters trigger events by payload magnitude.
	RespondMinMagnitude float64 `json:"respond_min_magnitude,omitempty"`
}

// Validate checks p against the definition it will drive. hasEffect, if
// set, reports whether an effect id exists.
func (p Program) Validate(def *ability.Definition, hasEffect func(id string) bool) error {
	for i, s := range p.Steps {
		switch s.Op {
		case OpCommit, OpCommitCost, OpCommitCooldown, OpEnd, OpCancel:
		case OpAddCue, OpRemoveCue, OpExecuteCue, OpWaitEvent:
			if !s.Tag.IsValid() {
				return fmt.Errorf("ability %s: step %d (%s) needs a tag", def.ID, i, s.Op)
			}
		case OpSendEvent:
			if !s.Tag.IsValid() {
				return fmt.Errorf("ability %s: step %d (%s) needs a tag", def.ID, i, s.Op)
			}
			if !s.Target.valid() {
				return fmt.Errorf("ability %s: step %d: bad target %q", def.ID, i, s.Target)
			}
		case OpWaitDelay:
			if s.Seconds <= 0 {
				return fmt.Errorf("ability %s: step %d: WAIT_DELAY needs seconds > 0", def.ID, i)
			}
		case OpWaitConfirm:
		case OpApplyEffect:
			if s.Effect == "" || (hasEffect != nil && !hasEffect(s.Effect)) {
				return fmt.Errorf("ability %s: step %d: unknown effect %q", def.ID, i, s.Effect)
			}
			if !s.Target.valid() {
				return fmt.Errorf("ability %s: step %d: bad target %q", def.ID, i, s.Target)
			}
		default:
			return fmt.Errorf("ability %s: step %d: unknown op %q", def.ID, i, s.Op)
		}
		if (s.Op.waits() || s.Op == OpAddCue || s.Op == OpRemoveCue) && def.Instancing == ability.NonInstanced {
			return fmt.Errorf("ability %s: %s needs an instanced ability", def.ID, s.Op)
		}
	}
	for _, g := range p.Require {
		if g.Attribute == "" {
			return fmt.Errorf("ability %s: require without attribute", def.ID)
		}
	}
	return nil
}

func (t Target) valid() bool {
	switch t {
	case "", TargetSelf, TargetInstigator, TargetEvent:
		return true
	}
	return false
}

// Script runs a Program for one instance. Each activation starts at the
// first step; a wait step parks the script in a task and the task resumes
// it.
type Script struct {
	prog    Program
	effects func(id string) (EffectDef, bool)

	pc   int
	last *ability.EventData

	// Templates carry no activation state of their own, so the current
	// activation is kept here.
	h    ability.Handle
	info *ability.ActorInfo
	act  ability.ActivationInfo
}

// New returns a constructor suitable for Definition.NewBehavior.
func New(prog Program, effects func(id string) (EffectDef, bool)) func() ability.Behavior {
	return func() ability.Behavior {
		return &Script{prog: prog, effects: effects}
	}
}

func (s *Script) Activate(a *ability.Instance, h ability.Handle, info *ability.ActorInfo, act ability.ActivationInfo, trigger *ability.EventData) {
	s.pc = 0
	s.last = trigger
	s.h, s.info, s.act = h, info, act
	s.resume(a)
}

func (s *Script) OnEnd(*ability.Instance, bool) { s.last = nil }

func (s *Script) CanActivate(_ *ability.Instance, _ ability.Handle, info *ability.ActorInfo, relevant *tags.Container) bool {
	if len(s.prog.Require) == 0 {
		return true
	}
	ec, ok := effectContainer(info, info.OwnerID)
	if !ok {
		return false
	}
	pass := true
	for _, g := range s.prog.Require {
		v, _ := ec.Attribute(g.Attribute)
		if v >= g.Min {
			continue
		}
		pass = false
		if relevant != nil && g.FailTag.IsValid() {
			relevant.Add(g.FailTag)
		}
	}
	return pass
}

func (s *Script) ShouldRespondToEvent(_ *ability.Instance, _ *ability.ActorInfo, payload *ability.EventData) bool {
	if payload == nil {
		return true
	}
	return payload.Magnitude >= s.prog.RespondMinMagnitude
}

// running reports whether the activation can still take steps. Templates
// keep no flags and run straight through.
func (s *Script) running(a *ability.Instance) bool {
	if !a.IsInstantiated() {
		return true
	}
	return a.IsActive() && !a.IsEnding()
}

func (s *Script) end(a *ability.Instance, cancelled bool) {
	a.End(s.h, s.info, s.act, true, cancelled)
}

// resume runs steps from pc until the script waits or the ability ends.
func (s *Script) resume(a *ability.Instance) {
	h, info, act := s.h, s.info, s.act
	for s.pc < len(s.prog.Steps) {
		if !s.running(a) {
			return
		}
		step := s.prog.Steps[s.pc]
		s.pc++

		switch step.Op {
		case OpCommit:
			if !a.Commit(h, info, act, nil) {
				s.end(a, true)
				return
			}
		case OpCommitCost:
			if !a.CommitCost(h, info, act, nil) {
				s.end(a, true)
				return
			}
		case OpCommitCooldown:
			if !a.CommitCooldown(h, info, act, step.Force, nil) {
				s.end(a, true)
				return
			}
		case OpAddCue:
			a.AddCue(step.Tag, step.RemoveOnEnd)
		case OpRemoveCue:
			a.RemoveCue(step.Tag)
		case OpExecuteCue:
			if owner, ok := info.Component(); ok {
				owner.ExecuteCue(step.Tag, a)
			}
		case OpSendEvent:
			s.sendEvent(a, step)
		case OpApplyEffect:
			s.applyEffect(a, step)
		case OpWaitDelay:
			t := tasks.NewWaitDelay(a, step.Name, step.Seconds)
			t.OnFinish = func() { s.resume(a) }
			if !t.Activate() {
				s.end(a, true)
			}
			return
		case OpWaitEvent:
			t := tasks.NewWaitEvent(a, step.Name, step.Tag, true, false)
			t.OnEvent = func(ev *ability.EventData) {
				s.last = ev
				s.resume(a)
			}
			if !t.Activate() {
				s.end(a, true)
			}
			return
		case OpWaitConfirm:
			t := tasks.NewWaitConfirmCancel(a, step.Name)
			t.OnConfirm = func() { s.resume(a) }
			t.OnCancel = func() { a.Cancel(h, info, act, true) }
			if !t.Activate() {
				s.end(a, true)
			}
			return
		case OpEnd:
			s.end(a, false)
			return
		case OpCancel:
			a.Cancel(h, info, act, true)
			return
		}
	}
	if s.running(a) {
		s.end(a, false)
	}
}

func (s *Script) target(t Target) ability.ActorID {
	switch t {
	case TargetInstigator:
		if s.last != nil && s.last.InstigatorID != "" {
			return s.last.InstigatorID
		}
	case TargetEvent:
		if s.last != nil && s.last.TargetID != "" {
			return s.last.TargetID
		}
	}
	return s.info.OwnerID
}

type eventReceiver interface {
	HandleGameplayEvent(tag tags.Tag, payload *ability.EventData) int
}

func (s *Script) sendEvent(a *ability.Instance, step Step) {
	id := s.target(step.Target)
	owner, ok := s.info.Dir.Component(id)
	if !ok {
		a.Logger().Debug("send event: target gone", zap.String("target", string(id)))
		return
	}
	rcv, ok := owner.(eventReceiver)
	if !ok {
		return
	}
	payload := &ability.EventData{
		EventTag:     step.Tag,
		InstigatorID: s.info.OwnerID,
		TargetID:     id,
		Magnitude:    step.Magnitude,
	}
	if self, ok := s.info.Component(); ok {
		payload.InstigatorTags = self.OwnedTags().Clone()
	}
	rcv.HandleGameplayEvent(step.Tag, payload)
}

type effectHolder interface {
	EffectContainer() *effects.Container
}

func effectContainer(info *ability.ActorInfo, id ability.ActorID) (*effects.Container, bool) {
	if info == nil || info.Dir == nil {
		return nil, false
	}
	owner, ok := info.Dir.Component(id)
	if !ok {
		return nil, false
	}
	eh, ok := owner.(effectHolder)
	if !ok {
		return nil, false
	}
	return eh.EffectContainer(), true
}

func (s *Script) applyEffect(a *ability.Instance, step Step) {
	var def EffectDef
	ok := false
	if s.effects != nil {
		def, ok = s.effects(step.Effect)
	}
	if !ok {
		a.Logger().Warn("apply effect: unknown effect", zap.String("effect", step.Effect))
		return
	}
	info := s.info
	id := s.target(step.Target)
	ec, ok := effectContainer(info, id)
	if !ok {
		a.Logger().Debug("apply effect: target gone", zap.String("target", string(id)))
		return
	}
	level := a.Level(s.h, info)
	ctx := ability.EffectContext{Handle: s.h, AbilityID: a.Def().ID, InstigatorID: info.OwnerID}
	if owner, ok := info.Component(); ok {
		if spec := owner.FindSpec(s.h); spec != nil {
			ctx.SetByCaller = spec.SetByCaller
		}
	}
	if len(def.Modifiers) > 0 {
		ec.ApplyModifiers(def.Modifiers, level, ctx)
	}
	if !def.GrantedTags.IsEmpty() {
		ec.ApplyTimed(effects.Timed{
			Source:      def.ID,
			Instigator:  info.OwnerID,
			GrantedTags: def.GrantedTags,
			Duration:    def.Duration.AtLevel(level),
		})
	}
}
