package ability

import (
	"math"

	"go.uber.org/zap"
)

func (a *Instance) activationTagPolicy() TagReplicationPolicy {
	if !a.cfg.ReplicateActivationOwnedTags {
		return TagsLocal
	}
	switch a.def.NetExecution {
	case LocalPredicted, ServerInitiated:
		return TagsMinimal
	}
	return TagsReplicated
}

// PreActivate does the bookkeeping of an activation: flags, activation-owned
// tags, block and cancel of other abilities, and the spec's active count.
// Tags are added before other abilities are blocked or cancelled, and the
// active count is bumped last so the ability cannot cancel itself halfway.
func (a *Instance) PreActivate(h Handle, info *ActorInfo, act ActivationInfo, onEnded func(*Instance), trigger *EventData) {
	owner, ok := info.Component()
	if !ok {
		a.usage("PreActivate: no ability component", zap.Stringer("handle", h))
		return
	}

	if a.def.Instancing != NonInstanced {
		a.active = true
		a.blocking = true
		a.cancelable = true
	}
	a.remoteEnded = false

	a.setCurrentInfo(h, info, act)

	if trigger != nil && a.instantiated {
		ev := *trigger
		a.eventData = &ev
	}

	owner.HandleCancelableChanged(a.def.AssetTags, a, true)
	owner.MutateOwnedTags(a.def.ActivationOwnedTags, a.activationTagPolicy(), true)

	if onEnded != nil {
		a.onEnded = append(a.onEnded, onEnded)
	}

	owner.NotifyActivated(h, a)
	owner.ApplyBlockAndCancelTags(a.def.AssetTags, a, true, a.def.BlockAbilitiesWithTag, true, a.def.CancelAbilitiesWithTag)

	spec := owner.FindSpec(h)
	if spec == nil {
		a.usage("PreActivate: valid handle but no spec", zap.Stringer("handle", h))
		return
	}
	if spec.ActiveCount < math.MaxUint8 {
		spec.ActiveCount++
	} else {
		a.log.Warn("spec active count saturated", zap.Stringer("handle", h), zap.Uint8("active_count", spec.ActiveCount))
	}
}

// CallActivate runs PreActivate and then the behavior.
func (a *Instance) CallActivate(h Handle, info *ActorInfo, act ActivationInfo, onEnded func(*Instance), trigger *EventData) {
	a.PreActivate(h, info, act, onEnded, trigger)
	if a.instantiated {
		a.activating = true
	}
	a.behavior.Activate(a, h, info, act, trigger)
	a.activating = false
}

// IsEndValid rejects ends of inactive or already ending instances, of
// orphaned instances, and of specs that are not active.
func (a *Instance) IsEndValid(h Handle, info *ActorInfo) bool {
	if (!a.active || a.ending) && a.def.Instancing != NonInstanced {
		return false
	}
	owner, ok := info.Component()
	if !ok {
		return false
	}
	specActive := a.IsActive()
	if spec := owner.FindSpec(h); spec != nil {
		specActive = spec.IsActive()
	}
	return specActive
}

// End tears the activation down. Calls made while the instance is scope
// locked are queued with their arguments and run when the lock drains.
func (a *Instance) End(h Handle, info *ActorInfo, act ActivationInfo, replicateEnd, wasCancelled bool) {
	if !a.IsEndValid(h, info) {
		return
	}
	if a.scopeLock > 0 {
		a.log.Debug("end deferred by scope lock", zap.Stringer("handle", h))
		a.waiting = append(a.waiting, func() { a.End(h, info, act, replicateEnd, wasCancelled) })
		return
	}

	instanced := a.def.Instancing != NonInstanced
	if instanced {
		a.ending = true
	}

	a.behavior.OnEnd(a, wasCancelled)

	// OnEnd may have ended us already.
	if instanced && !a.active {
		return
	}

	a.clearLatent()

	for _, fn := range a.onEnded {
		fn(a)
	}
	a.onEnded = nil
	data := EndedData{Instance: a, Handle: h, ReplicateEnd: replicateEnd, WasCancelled: wasCancelled}
	for _, fn := range a.onEndedWithData {
		fn(data)
	}
	a.onEndedWithData = nil

	if instanced {
		a.active = false
		a.ending = false
	}

	a.notifyTasksOwnerEnded()

	if owner, ok := info.Component(); ok {
		if replicateEnd {
			owner.ReplicateEndOrCancel(h, act, a, false)
		}
		owner.MutateOwnedTags(a.def.ActivationOwnedTags, a.activationTagPolicy(), false)

		for _, cue := range a.trackedCues {
			owner.RemoveCue(cue)
		}
		a.trackedCues = nil

		if a.CanBeCanceled() {
			owner.HandleCancelableChanged(a.def.AssetTags, a, false)
		}
		if a.IsBlockingOtherAbilities() {
			owner.ApplyBlockAndCancelTags(a.def.AssetTags, a, false, a.def.BlockAbilitiesWithTag, false, a.def.CancelAbilitiesWithTag)
		}
		owner.ClearReplicatedDataCache(h, a.activation)
		owner.NotifyEnded(h, a, wasCancelled)
	}

	if a.instantiated {
		a.eventData = nil
	}
}

// Cancel ends a cancelable ability with wasCancelled set. The cancel itself
// is what gets replicated, never the end.
func (a *Instance) Cancel(h Handle, info *ActorInfo, act ActivationInfo, replicateCancel bool) {
	if !a.CanBeCanceled() {
		return
	}
	if a.scopeLock > 0 {
		a.log.Debug("cancel deferred by scope lock", zap.Stringer("handle", h))
		a.waiting = append(a.waiting, func() { a.Cancel(h, info, act, replicateCancel) })
		return
	}
	if replicateCancel {
		if owner, ok := info.Component(); ok {
			owner.ReplicateEndOrCancel(h, act, a, true)
		}
	}
	for _, fn := range a.onCancelled {
		fn()
	}
	a.End(h, info, act, false, true)
}

// EndSelf ends the current activation and replicates the end.
func (a *Instance) EndSelf(wasCancelled bool) {
	if !a.instantiated {
		a.usage("EndSelf on a template")
		return
	}
	a.End(a.specHandle, a.info, a.activation, true, wasCancelled)
}

// CancelSelf cancels the current activation and replicates the cancel.
func (a *Instance) CancelSelf() {
	if !a.instantiated {
		a.usage("CancelSelf on a template")
		return
	}
	a.Cancel(a.specHandle, a.info, a.activation, true)
}

func (a *Instance) SetCanBeCanceled(can bool) {
	if a.def.Instancing == NonInstanced || can == a.cancelable {
		return
	}
	a.cancelable = can
	if owner, ok := a.Owner(); ok {
		owner.HandleCancelableChanged(a.def.AssetTags, a, can)
	}
}

func (a *Instance) SetShouldBlockOtherAbilities(block bool) {
	if !a.active || a.def.Instancing == NonInstanced || block == a.blocking {
		return
	}
	a.blocking = block
	if owner, ok := a.Owner(); ok {
		owner.ApplyBlockAndCancelTags(a.def.AssetTags, a, block, a.def.BlockAbilitiesWithTag, false, a.def.CancelAbilitiesWithTag)
	}
}

// ForceCancelDueToReplication cancels regardless of the cancelable flag.
func (a *Instance) ForceCancelDueToReplication() {
	a.SetCanBeCanceled(true)
	a.Cancel(a.specHandle, a.info, a.activation, false)
}

// SetRemoteInstanceHasEnded records that the remote side ended. A task still
// waiting on remote player data would never finish, so the ability is force
// cancelled.
func (a *Instance) SetRemoteInstanceHasEnded() {
	if a.info == nil {
		return
	}
	if _, ok := a.Owner(); !ok {
		return
	}
	a.remoteEnded = true
	for _, t := range a.Tasks() {
		if t != nil && t.IsWaitingOnRemotePlayerData() {
			a.log.Info("force cancel: task waiting on remote data after remote end", zap.String("task", t.InstanceName()))
			a.ForceCancelDueToReplication()
			break
		}
	}
}

// NotifyAvatarDestroyed force cancels when a task waits on the avatar.
func (a *Instance) NotifyAvatarDestroyed() {
	if a.info == nil {
		return
	}
	if _, ok := a.Owner(); !ok {
		return
	}
	a.remoteEnded = true
	for _, t := range a.Tasks() {
		if t != nil && t.IsWaitingOnAvatar() {
			a.log.Info("force cancel: task waiting on destroyed avatar", zap.String("task", t.InstanceName()))
			a.ForceCancelDueToReplication()
			break
		}
	}
}

// NotifyTaskWaitingOnPlayerData is called by a task that starts waiting on
// remote input.
func (a *Instance) NotifyTaskWaitingOnPlayerData(t Task) {
	if _, ok := a.Owner(); !ok {
		a.usage("task waiting on player data without component")
		return
	}
	if a.remoteEnded {
		a.log.Info("force cancel: task started after remote end", zap.String("task", t.InstanceName()))
		a.ForceCancelDueToReplication()
	}
}

func (a *Instance) NotifyTaskWaitingOnAvatar(t Task) {
	if a.info == nil {
		return
	}
	if _, ok := a.info.Avatar(); ok {
		return
	}
	a.log.Info("force cancel: task started without avatar", zap.String("task", t.InstanceName()))
	if _, ok := a.Owner(); ok {
		a.ForceCancelDueToReplication()
	}
}
