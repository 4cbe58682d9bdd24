package ability

import (
	"sort"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

func (a *Instance) CooldownTags() tags.Container { return a.def.CooldownTags() }

// CheckCooldown fails when the owner carries any of the cooldown tags.
func (a *Instance) CheckCooldown(h Handle, info *ActorInfo, relevant *tags.Container) bool {
	cd := a.CooldownTags()
	if cd.IsEmpty() {
		return true
	}
	owner, ok := info.Component()
	if !ok {
		return true
	}
	owned := owner.OwnedTags()
	if !owned.HasAny(cd) {
		return true
	}
	if relevant != nil {
		if a.cfg.FailTags.Cooldown.IsValid() {
			relevant.Add(a.cfg.FailTags.Cooldown)
		}
		relevant.AppendMatching(owned, cd)
	}
	return false
}

// CheckCost asks the effect subsystem whether the cost is affordable.
func (a *Instance) CheckCost(h Handle, info *ActorInfo, relevant *tags.Container) bool {
	if a.def.Cost == nil {
		return true
	}
	owner, ok := info.Component()
	if !ok {
		return true
	}
	spec := owner.FindSpec(h)
	if owner.Effects().CanApplyCost(a.def.Cost, a.Level(h, info), a.effectContext(h, info, spec)) {
		return true
	}
	if relevant != nil && a.cfg.FailTags.Cost.IsValid() {
		relevant.Add(a.cfg.FailTags.Cost)
	}
	return false
}

func (a *Instance) ApplyCooldown(h Handle, info *ActorInfo, act ActivationInfo) {
	if a.def.Cooldown == nil {
		return
	}
	owner, ok := info.Component()
	if !ok {
		return
	}
	spec := owner.FindSpec(h)
	owner.Effects().ApplyCooldown(a.def.Cooldown, a.Level(h, info), a.effectContext(h, info, spec))
}

func (a *Instance) ApplyCost(h Handle, info *ActorInfo, act ActivationInfo) {
	if a.def.Cost == nil {
		return
	}
	owner, ok := info.Component()
	if !ok {
		return
	}
	spec := owner.FindSpec(h)
	owner.Effects().ApplyCost(a.def.Cost, a.Level(h, info), a.effectContext(h, info, spec))
}

// CooldownTimeRemaining returns the longest remaining time among the active
// effects granting a cooldown tag.
func (a *Instance) CooldownTimeRemaining(info *ActorInfo) float64 {
	cd := a.CooldownTags()
	if cd.IsEmpty() {
		return 0
	}
	owner, ok := info.Component()
	if !ok {
		return 0
	}
	times := owner.Effects().TimeRemaining(cd)
	if len(times) == 0 {
		return 0
	}
	rem := make([]float64, len(times))
	for i, t := range times {
		rem[i] = t.Remaining
	}
	sort.Float64s(rem)
	return rem[len(rem)-1]
}

// CooldownTimeRemainingAndDuration returns the remaining time and total
// duration of the longest-remaining cooldown effect.
func (a *Instance) CooldownTimeRemainingAndDuration(info *ActorInfo) (remaining, duration float64) {
	cd := a.CooldownTags()
	if cd.IsEmpty() {
		return 0, 0
	}
	owner, ok := info.Component()
	if !ok {
		return 0, 0
	}
	best := -1.0
	for _, t := range owner.Effects().TimeRemaining(cd) {
		if t.Remaining >= best {
			best = t.Remaining
			remaining, duration = t.Remaining, t.Duration
		}
	}
	return remaining, duration
}
