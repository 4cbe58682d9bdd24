package component

import (
	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

// CancelAbilities cancels every active ability whose asset tags match any of
// with (nil means all) and none of without (nil means none). ignore is left
// running.
func (c *Component) CancelAbilities(with, without *tags.Container, ignore *ability.Instance) {
	c.IncrementAbilityListLock()
	defer c.DecrementAbilityListLock()

	for _, spec := range c.Specs() {
		if !spec.IsActive() {
			continue
		}
		withPass := with == nil || spec.Def.AssetTags.HasAny(*with)
		withoutPass := without == nil || !spec.Def.AssetTags.HasAny(*without)
		if withPass && withoutPass {
			c.cancelAbilitySpec(spec, ignore)
		}
	}
}

// CancelAbilityHandle cancels every activation of h.
func (c *Component) CancelAbilityHandle(h ability.Handle) {
	c.IncrementAbilityListLock()
	defer c.DecrementAbilityListLock()
	if spec := c.FindSpec(h); spec != nil {
		c.cancelAbilitySpec(spec, nil)
	}
}

// CancelAllAbilities cancels every active ability except ignore.
func (c *Component) CancelAllAbilities(ignore *ability.Instance) {
	c.IncrementAbilityListLock()
	defer c.DecrementAbilityListLock()
	for _, spec := range c.Specs() {
		if spec.IsActive() {
			c.cancelAbilitySpec(spec, ignore)
		}
	}
}

func (c *Component) cancelAbilitySpec(spec *ability.Spec, ignore *ability.Instance) {
	if spec.Def.Instancing == ability.NonInstanced {
		spec.Template.Cancel(spec.Handle, c.info, ability.ActivationInfo{}, true)
		return
	}
	for _, inst := range spec.AbilityInstances() {
		if inst != ignore && inst.IsActive() {
			inst.Cancel(spec.Handle, c.info, inst.ActivationInfo(), true)
		}
	}
}

// DestroyActiveState cancels everything and, with authority, removes every
// ability. It runs at most once.
func (c *Component) DestroyActiveState() {
	if c.destroying {
		return
	}
	c.destroying = true
	if _, ok := c.info.Component(); ok {
		c.CancelAbilities(nil, nil, nil)
	}
	if c.isAuthority() {
		c.ClearAllAbilities()
		return
	}
	for _, spec := range c.Specs() {
		for _, inst := range spec.AbilityInstances() {
			if inst.IsActive() {
				inst.End(spec.Handle, c.info, inst.ActivationInfo(), false, false)
			}
		}
		spec.Instances = nil
	}
}

// NotifyAvatarDestroyed tells every active instance that the avatar is
// gone.
func (c *Component) NotifyAvatarDestroyed() {
	for _, spec := range c.Specs() {
		for _, inst := range spec.AbilityInstances() {
			if inst.IsActive() {
				inst.NotifyAvatarDestroyed()
			}
		}
	}
}

// BlockAbilityByInputID blocks activation of specs bound to inputID until a
// matching unblock.
func (c *Component) BlockAbilityByInputID(inputID int) {
	if inputID == NoInput {
		return
	}
	c.blockedInputs[inputID]++
}

func (c *Component) UnblockAbilityByInputID(inputID int) {
	if c.blockedInputs[inputID] <= 0 {
		return
	}
	c.blockedInputs[inputID]--
	if c.blockedInputs[inputID] == 0 {
		delete(c.blockedInputs, inputID)
	}
}

func (c *Component) IsInputBlocked(inputID int) bool {
	if inputID == NoInput {
		return false
	}
	return c.blockedInputs[inputID] > 0
}

func (c *Component) UserActivationInhibited() bool { return c.inhibited }

// SetUserAbilityActivationInhibited stops user driven activations.
func (c *Component) SetUserAbilityActivationInhibited(inhibit bool) {
	if inhibit && c.inhibited {
		c.log.Warn("user ability activation already inhibited")
	}
	c.inhibited = inhibit
}

// ServerEndAbility ends an activation at the request of the remote
// controller.
func (c *Component) ServerEndAbility(h ability.Handle, act ability.ActivationInfo) {
	spec := c.FindSpec(h)
	if spec == nil {
		return
	}
	if sec := spec.Def.NetSecurity; sec == ability.ServerOnlyTermination || sec == ability.SecurityServerOnly {
		c.log.Warn("client tried to end a server-terminated ability", zap.Stringer("handle", h), zap.String("ability", spec.Def.ID))
		return
	}
	c.RemoteEndOrCancel(h, act, false)
}

// ServerCancelAbility cancels an activation at the request of the remote
// controller.
func (c *Component) ServerCancelAbility(h ability.Handle, act ability.ActivationInfo) {
	spec := c.FindSpec(h)
	if spec == nil {
		return
	}
	if sec := spec.Def.NetSecurity; sec == ability.ServerOnlyTermination || sec == ability.SecurityServerOnly {
		c.log.Warn("client tried to cancel a server-terminated ability", zap.Stringer("handle", h), zap.String("ability", spec.Def.ID))
		return
	}
	c.RemoteEndOrCancel(h, act, true)
}

// RemoteEndOrCancel applies an end or cancel that arrived from the other
// side. Instances are matched by prediction key; an instance that may not be
// ended remotely only records that the remote side is done.
func (c *Component) RemoteEndOrCancel(h ability.Handle, act ability.ActivationInfo, wasCancelled bool) {
	spec := c.FindSpec(h)
	if spec == nil || !spec.IsActive() {
		return
	}
	if spec.Def.Instancing == ability.NonInstanced {
		if wasCancelled {
			spec.Template.Cancel(h, c.info, act, false)
		} else {
			spec.Template.End(h, c.info, act, false, false)
		}
		return
	}
	for _, inst := range spec.AbilityInstances() {
		if inst.ActivationInfo().PredictionKey != act.PredictionKey {
			continue
		}
		inst.SetRemoteInstanceHasEnded()
		if !inst.ActivationInfo().CanBeEndedByOtherInstance {
			continue
		}
		if wasCancelled {
			inst.ForceCancelDueToReplication()
		} else {
			inst.End(h, c.info, inst.ActivationInfo(), false, false)
		}
	}
}

// ApplyBlockAndCancelTags blocks or unblocks blockTags and optionally
// cancels the abilities matching cancelTags.
func (c *Component) ApplyBlockAndCancelTags(assetTags tags.Container, requesting *ability.Instance, enableBlock bool, blockTags tags.Container, executeCancel bool, cancelTags tags.Container) {
	if enableBlock {
		c.blocked.Update(blockTags, 1)
	} else {
		c.blocked.Update(blockTags, -1)
	}
	if executeCancel && !cancelTags.IsEmpty() {
		c.CancelAbilities(&cancelTags, nil, requesting)
	}
}

func (c *Component) BlockedAbilityTags() tags.Container { return c.blocked.Explicit() }

func (c *Component) AreAbilityTagsBlocked(t tags.Container) bool {
	return t.HasAny(c.blocked.Explicit())
}
