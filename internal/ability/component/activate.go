package component

import (
	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

// TryActivateAbility activates h on behalf of local input. When the owner is
// not locally controlled, a predicted ability can only be started remotely;
// with allowRemote the server stands in for the client and predicts with a
// key of its own.
func (c *Component) TryActivateAbility(h ability.Handle, allowRemote bool) bool {
	spec := c.FindSpec(h)
	if spec == nil {
		c.log.Warn("try activate: no spec for handle", zap.Stringer("handle", h))
		return false
	}
	if spec.PendingRemove || spec.RemoveAfterActivation {
		c.log.Debug("try activate: spec is being removed", zap.Stringer("handle", h))
		return false
	}
	if _, ok := c.info.Component(); !ok {
		c.log.Warn("try activate: owner not resolvable", zap.Stringer("handle", h))
		return false
	}
	role := c.avatarRole()
	if role == ability.RoleSimulatedProxy {
		return false
	}

	pol := spec.Def.NetExecution
	if !c.info.LocallyControlled && (pol == ability.LocalOnly || pol == ability.LocalPredicted) {
		if allowRemote && pol == ability.LocalPredicted && c.isAuthority() {
			return c.InternalTryActivate(h, c.newPredictionKey(), nil, nil)
		}
		c.log.Debug("can't activate local ability when not local", zap.Stringer("handle", h), zap.String("policy", string(pol)))
		return false
	}
	if !c.isAuthority() && (pol == ability.ServerOnly || pol == ability.ServerInitiated) {
		c.log.Debug("can't activate server ability when not the server", zap.Stringer("handle", h), zap.String("policy", string(pol)))
		return false
	}
	return c.InternalTryActivate(h, 0, nil, nil)
}

// TryActivateAbilitiesByTag tries every spec whose asset tags include all of
// t and reports whether any activated.
func (c *Component) TryActivateAbilitiesByTag(t tags.Container, allowRemote bool) bool {
	ok := false
	for _, spec := range c.ActivatableSpecsByAllMatchingTags(t) {
		if c.TryActivateAbility(spec.Handle, allowRemote) {
			ok = true
		}
	}
	return ok
}

// ServerTryActivateAbility handles an activation request sent by a remote
// controller. A zero key is replaced with a server-generated one.
func (c *Component) ServerTryActivateAbility(h ability.Handle, inputPressed bool, key uint32) bool {
	spec := c.FindSpec(h)
	if spec == nil {
		c.log.Warn("server try activate: no spec for handle", zap.Stringer("handle", h))
		c.emit(Event{Kind: EventRejected, Handle: h, PredictionKey: key})
		return false
	}
	sec := spec.Def.NetSecurity
	if sec == ability.ServerOnlyExecution || sec == ability.SecurityServerOnly {
		c.log.Warn("client tried to activate a server-only ability", zap.Stringer("handle", h), zap.String("ability", spec.Def.ID))
		c.emit(Event{Kind: EventRejected, Handle: h, AbilityID: spec.Def.ID, PredictionKey: key})
		return false
	}
	if key == 0 && spec.Def.NetExecution == ability.LocalPredicted {
		key = c.newPredictionKey()
	}

	spec.InputPressed = inputPressed
	if c.InternalTryActivate(h, key, nil, nil) {
		return true
	}
	c.emit(Event{Kind: EventRejected, Handle: h, AbilityID: spec.Def.ID, PredictionKey: key})
	spec.InputPressed = false
	return false
}

// InternalTryActivate runs the network checks, the activation gate and the
// instancing rules, then activates. onEnded, if set, is called when that
// activation ends.
func (c *Component) InternalTryActivate(h ability.Handle, key uint32, onEnded func(*ability.Instance), trigger *ability.EventData) bool {
	if !h.IsValid() {
		c.log.Warn("try activate: invalid handle")
		return false
	}
	spec := c.FindSpec(h)
	if spec == nil {
		c.log.Warn("try activate: no spec for handle", zap.Stringer("handle", h))
		return false
	}

	c.IncrementAbilityListLock()
	defer c.DecrementAbilityListLock()

	if _, ok := c.info.Component(); !ok {
		c.log.Warn("try activate: owner not resolvable", zap.Stringer("handle", h))
		return false
	}
	if _, ok := c.info.Avatar(); !ok {
		c.log.Warn("try activate: avatar not resolvable", zap.Stringer("handle", h))
		return false
	}
	role := c.avatarRole()
	if role == ability.RoleSimulatedProxy {
		return false
	}

	def := spec.Def
	local := c.info.LocallyControlled
	pol := def.NetExecution

	if !local && (pol == ability.LocalOnly || (pol == ability.LocalPredicted && key == 0)) {
		c.log.Debug("can't activate: local ability on a remote owner", zap.Stringer("handle", h), zap.String("policy", string(pol)))
		c.notifyFailed(h, tags.New(c.cfg.FailTags.Networking))
		return false
	}
	if role != ability.RoleAuthority && (pol == ability.ServerOnly || pol == ability.ServerInitiated) {
		c.log.Debug("can't activate: server ability without authority", zap.Stringer("handle", h), zap.String("policy", string(pol)))
		c.notifyFailed(h, tags.New(c.cfg.FailTags.Networking))
		return false
	}

	source := spec.Template
	if p := spec.PrimaryInstance(); p != nil {
		source = p
	}

	if trigger != nil && !source.ShouldRespondToEvent(c.info, trigger) {
		c.log.Debug("can't activate: ability ignored event", zap.Stringer("handle", h), zap.String("event", string(trigger.EventTag)))
		c.notifyFailed(h, tags.Container{})
		return false
	}

	var srcTags, tgtTags *tags.Container
	if trigger != nil {
		srcTags = &trigger.InstigatorTags
		tgtTags = &trigger.TargetTags
	}
	var reasons tags.Container
	if !source.CanActivate(h, c.info, srcTags, tgtTags, &reasons) {
		if reasons.IsEmpty() {
			reasons.Add(c.cfg.FailTags.CanActivate)
		}
		c.notifyFailed(h, reasons)
		return false
	}

	if def.Instancing == ability.InstancedPerActor && spec.IsActive() {
		p := spec.PrimaryInstance()
		if !def.RetriggerInstancedAbility || p == nil {
			c.log.Debug("can't activate: per-actor ability already active", zap.Stringer("handle", h))
			return false
		}
		c.log.Debug("retriggering per-actor ability", zap.Stringer("handle", h))
		p.End(h, c.info, p.ActivationInfo(), true, false)
	}

	if def.Instancing == ability.InstancedPerActor && spec.PrimaryInstance() == nil {
		c.log.Warn("per-actor ability has no primary instance", zap.Stringer("handle", h))
		return false
	}

	act := ability.ActivationInfo{}
	if c.isAuthority() {
		act.Mode = ability.ModeAuthority
		act.PredictionKey = key
		if key == 0 || pol == ability.ServerInitiated || pol == ability.ServerOnly {
			act.PredictionKey = c.newPredictionKey()
		}
	} else {
		act.Mode = ability.ModePredicting
		act.PredictionKey = key
	}
	act.CanBeEndedByOtherInstance = !local && def.ServerRespectsRemoteAbilityCancellation

	inst := source
	switch def.Instancing {
	case ability.InstancedPerExecution:
		inst = ability.NewInstance(def, c.cfg, c.log)
		spec.Instances = append(spec.Instances, inst)
	case ability.NonInstanced:
		inst = spec.Template
	}

	inst.CallActivate(h, c.info, act, onEnded, trigger)
	return true
}

// hasNetworkAuthorityToActivateTriggered reports whether this side may start
// a triggered activation. Predicted abilities of remote owners are started
// by the server on the client's behalf.
func (c *Component) hasNetworkAuthorityToActivateTriggered(spec *ability.Spec) bool {
	switch spec.Def.NetExecution {
	case ability.LocalOnly:
		return c.info.LocallyControlled
	case ability.LocalPredicted:
		return c.info.LocallyControlled || c.isAuthority()
	}
	return c.isAuthority()
}

// serverKey generates a key when the server activates a predicted ability
// of a remote owner. Every other activation lets InternalTryActivate decide.
func (c *Component) serverKey(spec *ability.Spec) uint32 {
	if c.isAuthority() && !c.info.LocallyControlled && spec.Def.NetExecution == ability.LocalPredicted {
		return c.newPredictionKey()
	}
	return 0
}

// monitoredTagChanged fires owned-tag triggers when a tag appears, and
// cancels OWNED_TAG_PRESENT abilities when it goes away. Parent tags count:
// a trigger on "State" fires when "State.Burning" is added.
func (c *Component) monitoredTagChanged(tag tags.Tag, present bool) {
	handles := c.ownedTagTriggers[tag]
	if len(handles) == 0 {
		return
	}
	count := c.owned.FullCount(tag)

	c.IncrementAbilityListLock()
	defer c.DecrementAbilityListLock()

	for _, h := range append([]ability.Handle(nil), handles...) {
		spec := c.FindSpec(h)
		if spec == nil || !c.hasNetworkAuthorityToActivateTriggered(spec) {
			continue
		}
		for _, tr := range spec.Def.Triggers {
			if tr.Tag != tag || tr.Source == ability.TriggerGameplayEvent {
				continue
			}
			if present {
				ev := ability.EventData{
					EventTag:     tag,
					InstigatorID: c.id,
					TargetID:     c.id,
					Magnitude:    float64(count),
				}
				c.InternalTryActivate(h, c.serverKey(spec), nil, &ev)
			} else if tr.Source == ability.TriggerOwnedTagPresent {
				c.cancelAbilitySpec(spec, nil)
			}
		}
	}
}

// PressInput marks every spec bound to inputID as pressed and activates
// the inactive ones.
func (c *Component) PressInput(inputID int) {
	if inputID == NoInput || c.IsInputBlocked(inputID) {
		return
	}
	c.IncrementAbilityListLock()
	defer c.DecrementAbilityListLock()
	for _, spec := range c.Specs() {
		if spec.InputID != inputID {
			continue
		}
		spec.InputPressed = true
		if spec.IsActive() {
			c.invokeOnActive(spec, ReplicatedInputPressed)
			continue
		}
		c.TryActivateAbility(spec.Handle, true)
	}
}

// ReleaseInput clears the pressed flag of every spec bound to inputID.
func (c *Component) ReleaseInput(inputID int) {
	if inputID == NoInput {
		return
	}
	c.IncrementAbilityListLock()
	defer c.DecrementAbilityListLock()
	for _, spec := range c.Specs() {
		if spec.InputID != inputID {
			continue
		}
		spec.InputPressed = false
		if spec.IsActive() {
			c.invokeOnActive(spec, ReplicatedInputReleased)
		}
	}
}

// invokeOnActive fires ev for the current activation of every active
// instance of spec.
func (c *Component) invokeOnActive(spec *ability.Spec, ev ReplicatedEvent) {
	if spec.Def.Instancing == ability.NonInstanced {
		c.InvokeReplicatedEvent(ev, spec.Handle, 0)
		return
	}
	for _, inst := range spec.AbilityInstances() {
		if inst.IsActive() {
			c.InvokeReplicatedEvent(ev, spec.Handle, inst.ActivationInfo().PredictionKey)
		}
	}
}
