package ability

import "github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"

// Directory resolves actor ids. Abilities look actors up on every use.
type Directory interface {
	Component(id ActorID) (Owner, bool)
	Avatar(id ActorID) (Avatar, bool)
}

type Avatar interface {
	LocalRole() NetRole
}

// EffectContext identifies who is applying an effect and from which spec.
type EffectContext struct {
	Handle       Handle
	AbilityID    string
	InstigatorID ActorID
	SetByCaller  map[tags.Tag]float64
}

// EffectTime is one active effect's remaining and total duration.
type EffectTime struct {
	Remaining float64
	Duration  float64
}

// Effects is the owner's effect subsystem.
type Effects interface {
	ApplyCooldown(cd *CooldownDef, level float64, ctx EffectContext)
	// CanApplyCost must not mutate anything.
	CanApplyCost(cost *CostDef, level float64, ctx EffectContext) bool
	ApplyCost(cost *CostDef, level float64, ctx EffectContext)
	TimeRemaining(query tags.Container) []EffectTime
}

type TagState interface {
	OwnedTags() tags.Container
	BlockedAbilityTags() tags.Container
	AreAbilityTagsBlocked(t tags.Container) bool
	MutateOwnedTags(t tags.Container, policy TagReplicationPolicy, add bool)
}

type Notifier interface {
	NotifyActivated(h Handle, a *Instance)
	NotifyEnded(h Handle, a *Instance, wasCancelled bool)
	NotifyCommitted(a *Instance)
	ApplyBlockAndCancelTags(assetTags tags.Container, requesting *Instance, enableBlock bool, blockTags tags.Container, executeCancel bool, cancelTags tags.Container)
	HandleCancelableChanged(assetTags tags.Container, a *Instance, canBeCanceled bool)
	ClearReplicatedDataCache(h Handle, act ActivationInfo)
	ReplicateEndOrCancel(h Handle, act ActivationInfo, a *Instance, wasCancelled bool)
}

type CueSink interface {
	AddCue(tag tags.Tag, a *Instance)
	RemoveCue(tag tags.Tag)
	ExecuteCue(tag tags.Tag, a *Instance)
}

type Scheduler interface {
	// ScheduleNextTick runs fn at the start of the next tick.
	ScheduleNextTick(fn func())
}

// Owner is everything an ability needs from the component that owns it.
type Owner interface {
	TagState
	Notifier
	CueSink
	Scheduler

	FindSpec(h Handle) *Spec
	UserActivationInhibited() bool
	IsInputBlocked(inputID int) bool
	Effects() Effects
}
