package ability

import (
	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

// ShouldActivateAbility reports whether an actor with role may run this
// ability at all.
func (a *Instance) ShouldActivateAbility(role NetRole) bool {
	if role == RoleSimulatedProxy {
		return false
	}
	if role == RoleAuthority {
		return true
	}
	sec := a.def.NetSecurity
	return sec != SecurityServerOnly && sec != ServerOnlyExecution
}

// CanActivate runs the activation gate. The checks short-circuit in a fixed
// order; relevant, if non-nil, receives the diagnostic tags of the failing
// check.
func (a *Instance) CanActivate(h Handle, info *ActorInfo, source, target *tags.Container, relevant *tags.Container) bool {
	av, ok := info.Avatar()
	if !ok || !a.ShouldActivateAbility(av.LocalRole()) {
		return false
	}

	owner, ok := info.Component()
	if !ok {
		a.usage("CanActivate: no ability component", zap.Stringer("handle", h))
		return false
	}
	spec := owner.FindSpec(h)
	if spec == nil {
		a.usage("CanActivate: no spec for handle", zap.Stringer("handle", h))
		return false
	}

	if owner.UserActivationInhibited() {
		return false
	}
	if !a.cfg.IgnoreCooldowns && !a.CheckCooldown(h, info, relevant) {
		a.log.Debug("can't activate: cooldown", zap.Stringer("handle", h))
		return false
	}
	if !a.cfg.IgnoreCosts && !a.CheckCost(h, info, relevant) {
		a.log.Debug("can't activate: cost", zap.Stringer("handle", h))
		return false
	}
	if !a.DoesSatisfyTagRequirements(owner, source, target, relevant) {
		a.log.Debug("can't activate: tag requirements", zap.Stringer("handle", h))
		return false
	}
	if owner.IsInputBlocked(spec.InputID) {
		return false
	}

	var custom tags.Container
	if !a.behavior.CanActivate(a, h, info, &custom) {
		if relevant != nil {
			if a.cfg.FailTags.CanActivate.IsValid() {
				relevant.Add(a.cfg.FailTags.CanActivate)
			}
			relevant.Append(custom)
		}
		return false
	}
	return true
}

// ShouldRespondToEvent asks the behavior whether payload should trigger it.
func (a *Instance) ShouldRespondToEvent(info *ActorInfo, payload *EventData) bool {
	return a.behavior.ShouldRespondToEvent(a, info, payload)
}
