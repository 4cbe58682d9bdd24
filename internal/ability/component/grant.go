package component

import (
	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

// NoInput marks a spec that is not bound to an input.
const NoInput = -1

// Grant describes an ability to give.
type Grant struct {
	Def         *ability.Definition
	Level       int
	InputID     int
	SourceID    string
	SetByCaller map[tags.Tag]float64
}

// BuildSpec allocates a handle and a spec for g. The spec is not granted
// until it is passed to GiveAbility.
func (c *Component) BuildSpec(g Grant) *ability.Spec {
	c.nextHandle++
	level := g.Level
	if level <= 0 {
		level = 1
	}
	spec := &ability.Spec{
		Handle:   c.nextHandle,
		Def:      g.Def,
		Level:    level,
		InputID:  g.InputID,
		SourceID: g.SourceID,
	}
	if len(g.SetByCaller) > 0 {
		spec.SetByCaller = make(map[tags.Tag]float64, len(g.SetByCaller))
		for k, v := range g.SetByCaller {
			spec.SetByCaller[k] = v
		}
	}
	return spec
}

func (c *Component) IncrementAbilityListLock() { c.listLock++ }

// DecrementAbilityListLock releases the ability list. Reaching zero applies
// the grants and removals that were requested while it was held.
func (c *Component) DecrementAbilityListLock() {
	if c.listLock == 0 {
		c.log.Warn("ability list lock released while not held")
		return
	}
	c.listLock--
	if c.listLock > 0 {
		return
	}

	if c.pendingClearAll {
		if len(c.pendingAdds) > 0 {
			c.log.Warn("dropping abilities granted during clear all", zap.Int("count", len(c.pendingAdds)))
		}
		c.pendingAdds = nil
		c.pendingRemoves = nil
		c.ClearAllAbilities()
		return
	}

	adds := c.pendingAdds
	c.pendingAdds = nil
	for _, p := range adds {
		if p.activateOnce {
			c.GiveAbilityAndActivateOnce(p.spec, p.event)
		} else {
			c.GiveAbility(p.spec)
		}
	}

	removes := c.pendingRemoves
	c.pendingRemoves = nil
	for _, h := range removes {
		c.ClearAbility(h)
	}
}

func (c *Component) AbilityListLocked() bool { return c.listLock > 0 }

// GiveAbility grants spec and returns its handle. Grants made while the
// ability list is locked are applied when the lock is released.
func (c *Component) GiveAbility(spec *ability.Spec) ability.Handle {
	if spec == nil || spec.Def == nil {
		c.log.Error("give ability: no definition")
		return 0
	}
	if !c.isAuthority() {
		c.log.Error("give ability without authority", zap.String("ability", spec.Def.ID))
		return 0
	}
	if c.destroying {
		c.log.Warn("give ability during destroy", zap.String("ability", spec.Def.ID))
		return 0
	}
	if !spec.Handle.IsValid() {
		c.nextHandle++
		spec.Handle = c.nextHandle
	}
	spec.Def.Normalize()

	if c.listLock > 0 {
		c.pendingAdds = append(c.pendingAdds, pendingAdd{spec: spec})
		return spec.Handle
	}

	c.IncrementAbilityListLock()
	c.specs = append(c.specs, spec)
	c.onGiveAbility(spec)
	c.DecrementAbilityListLock()
	return spec.Handle
}

func (c *Component) onGiveAbility(spec *ability.Spec) {
	spec.Template = ability.NewTemplate(spec.Def, c.cfg, c.log)
	if spec.Def.Instancing == ability.InstancedPerActor && len(spec.Instances) == 0 {
		spec.Instances = append(spec.Instances, ability.NewInstance(spec.Def, c.cfg, c.log))
	}

	for _, tr := range spec.Def.Triggers {
		switch tr.Source {
		case ability.TriggerGameplayEvent:
			c.eventTriggers[tr.Tag] = appendHandle(c.eventTriggers[tr.Tag], spec.Handle)
		case ability.TriggerOwnedTagAdded, ability.TriggerOwnedTagPresent:
			c.ownedTagTriggers[tr.Tag] = appendHandle(c.ownedTagTriggers[tr.Tag], spec.Handle)
		}
	}

	c.log.Info("ability granted", zap.Stringer("handle", spec.Handle), zap.String("ability", spec.Def.ID), zap.Int("level", spec.Level))
	c.emit(c.specEvent(EventGranted, spec.Handle))
}

// GiveAbilityAndActivateOnce grants spec, activates it and removes it when
// the activation ends. It returns 0 if the activation fails.
func (c *Component) GiveAbilityAndActivateOnce(spec *ability.Spec, event *ability.EventData) ability.Handle {
	if spec == nil || spec.Def == nil {
		c.log.Error("give ability and activate once: no definition")
		return 0
	}
	spec.Def.Normalize()
	if spec.Def.Instancing == ability.NonInstanced {
		c.log.Error("give ability and activate once: non-instanced ability", zap.String("ability", spec.Def.ID))
		return 0
	}
	if spec.Def.NetExecution == ability.LocalOnly {
		c.log.Error("give ability and activate once: local-only ability", zap.String("ability", spec.Def.ID))
		return 0
	}

	if c.listLock > 0 {
		if !spec.Handle.IsValid() {
			c.nextHandle++
			spec.Handle = c.nextHandle
		}
		spec.RemoveAfterActivation = true
		c.pendingAdds = append(c.pendingAdds, pendingAdd{spec: spec, activateOnce: true, event: event})
		return spec.Handle
	}

	h := c.GiveAbility(spec)
	granted := c.FindSpec(h)
	if granted == nil {
		return 0
	}
	granted.RemoveAfterActivation = true

	if !c.InternalTryActivate(h, c.serverKey(granted), nil, event) {
		c.ClearAbility(h)
		return 0
	}
	return h
}

// ClearAbility removes the spec of h, ending its active instances. While
// the ability list is locked the spec is only marked for removal.
func (c *Component) ClearAbility(h ability.Handle) {
	if !c.isAuthority() {
		c.log.Error("clear ability without authority", zap.Stringer("handle", h))
		return
	}
	for i, p := range c.pendingAdds {
		if p.spec.Handle == h {
			last := len(c.pendingAdds) - 1
			c.pendingAdds[i] = c.pendingAdds[last]
			c.pendingAdds = c.pendingAdds[:last]
			return
		}
	}

	for i, spec := range c.specs {
		if spec.Handle != h {
			continue
		}
		if c.listLock > 0 {
			if !spec.PendingRemove {
				spec.PendingRemove = true
				c.pendingRemoves = append(c.pendingRemoves, h)
			}
			return
		}

		c.IncrementAbilityListLock()
		c.onRemoveAbility(spec)
		c.specs = append(c.specs[:i], c.specs[i+1:]...)
		c.DecrementAbilityListLock()
		return
	}
}

// ClearAllAbilities removes every spec. While the list is locked the clear
// happens on release and drops grants requested in between.
func (c *Component) ClearAllAbilities() {
	if !c.isAuthority() {
		c.log.Error("clear all abilities without authority")
		return
	}
	if c.listLock > 0 {
		c.pendingClearAll = true
		return
	}
	c.IncrementAbilityListLock()
	for _, spec := range append([]*ability.Spec(nil), c.specs...) {
		c.onRemoveAbility(spec)
	}
	c.specs = nil
	c.pendingClearAll = false
	c.DecrementAbilityListLock()
}

// ClearAllAbilitiesWithInputID removes every spec bound to inputID.
func (c *Component) ClearAllAbilitiesWithInputID(inputID int) {
	for _, spec := range c.Specs() {
		if spec.InputID == inputID {
			c.ClearAbility(spec.Handle)
		}
	}
}

// SetRemoveAbilityOnEnd removes h as soon as it is not active.
func (c *Component) SetRemoveAbilityOnEnd(h ability.Handle) {
	spec := c.FindSpec(h)
	if spec == nil {
		return
	}
	if spec.IsActive() {
		spec.RemoveAfterActivation = true
		return
	}
	c.ClearAbility(h)
}

func (c *Component) onRemoveAbility(spec *ability.Spec) {
	c.log.Info("ability removed", zap.Stringer("handle", spec.Handle), zap.String("ability", spec.Def.ID), zap.Int("level", spec.Level))
	for _, tr := range spec.Def.Triggers {
		switch tr.Source {
		case ability.TriggerGameplayEvent:
			c.eventTriggers[tr.Tag] = removeHandle(c.eventTriggers[tr.Tag], spec.Handle)
			if len(c.eventTriggers[tr.Tag]) == 0 {
				delete(c.eventTriggers, tr.Tag)
			}
		default:
			c.ownedTagTriggers[tr.Tag] = removeHandle(c.ownedTagTriggers[tr.Tag], spec.Handle)
			if len(c.ownedTagTriggers[tr.Tag]) == 0 {
				delete(c.ownedTagTriggers, tr.Tag)
			}
		}
	}

	for _, inst := range spec.AbilityInstances() {
		if inst.IsActive() {
			inst.End(spec.Handle, c.info, inst.ActivationInfo(), false, false)
		} else if spec.Def.Instancing == ability.InstancedPerExecution {
			spec.RemoveInstance(inst)
		}
	}
	if spec.Def.Instancing == ability.InstancedPerActor {
		spec.Instances = nil
	} else if spec.IsActive() {
		switch spec.Def.Instancing {
		case ability.InstancedPerExecution:
			spec.RemoveAfterActivation = true
		case ability.NonInstanced:
			spec.Template.End(spec.Handle, c.info, ability.ActivationInfo{}, false, false)
		}
	}

	for k := range c.replicatedData {
		if k.handle == spec.Handle {
			delete(c.replicatedData, k)
		}
	}
	c.emit(Event{Kind: EventRemoved, Handle: spec.Handle, AbilityID: spec.Def.ID})
}

func appendHandle(list []ability.Handle, h ability.Handle) []ability.Handle {
	for _, x := range list {
		if x == h {
			return list
		}
	}
	return append(list, h)
}

func removeHandle(list []ability.Handle, h ability.Handle) []ability.Handle {
	for i, x := range list {
		if x == h {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
