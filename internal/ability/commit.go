package ability

import (
	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

// CommitCheck re-runs the cooldown and cost checks. Tag requirements and
// input inhibition are not re-checked: activation may already have changed
// the owner's tags.
func (a *Instance) CommitCheck(h Handle, info *ActorInfo, act ActivationInfo, relevant *tags.Container) bool {
	owner, ok := info.Component()
	if !h.IsValid() || !ok || owner.FindSpec(h) == nil {
		a.usage("CommitCheck: invalid handle, actor info or spec", zap.Stringer("handle", h))
		return false
	}
	if !a.cfg.IgnoreCooldowns && !a.CheckCooldown(h, info, relevant) {
		return false
	}
	if !a.cfg.IgnoreCosts && !a.CheckCost(h, info, relevant) {
		return false
	}
	return true
}

// CommitExecute applies the cooldown, then the cost.
func (a *Instance) CommitExecute(h Handle, info *ActorInfo, act ActivationInfo) {
	a.ApplyCooldown(h, info, act)
	a.ApplyCost(h, info, act)
}

// Commit spends the cooldown and cost together, or neither.
func (a *Instance) Commit(h Handle, info *ActorInfo, act ActivationInfo, relevant *tags.Container) bool {
	if !a.CommitCheck(h, info, act, relevant) {
		return false
	}
	a.CommitExecute(h, info, act)
	if hook, ok := a.behavior.(CommitHook); ok {
		hook.OnCommit(a)
	}
	if owner, ok := info.Component(); ok {
		owner.NotifyCommitted(a)
	}
	return true
}

// CommitCooldown applies only the cooldown. force skips the check.
func (a *Instance) CommitCooldown(h Handle, info *ActorInfo, act ActivationInfo, force bool, relevant *tags.Container) bool {
	if a.cfg.IgnoreCooldowns {
		return true
	}
	if !force && !a.CheckCooldown(h, info, relevant) {
		return false
	}
	a.ApplyCooldown(h, info, act)
	return true
}

// CommitCost applies only the cost.
func (a *Instance) CommitCost(h Handle, info *ActorInfo, act ActivationInfo, relevant *tags.Container) bool {
	if a.cfg.IgnoreCosts {
		return true
	}
	if !a.CheckCost(h, info, relevant) {
		return false
	}
	a.ApplyCost(h, info, act)
	return true
}

// CommitSelf commits with the current activation context.
func (a *Instance) CommitSelf(relevant *tags.Container) bool {
	if !a.instantiated {
		a.usage("CommitSelf on a template")
		return false
	}
	return a.Commit(a.specHandle, a.info, a.activation, relevant)
}
