package ability

import (
	"fmt"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

type fakeAvatar struct{ role NetRole }

func (f *fakeAvatar) LocalRole() NetRole { return f.role }

type fakeDir struct {
	owner  *fakeOwner
	avatar *fakeAvatar
}

func (d *fakeDir) Component(id ActorID) (Owner, bool) {
	if d.owner == nil || id != "p1" {
		return nil, false
	}
	return d.owner, true
}

func (d *fakeDir) Avatar(id ActorID) (Avatar, bool) {
	if d.avatar == nil || id != "p1" {
		return nil, false
	}
	return d.avatar, true
}

type fakeEffects struct {
	owner *fakeOwner

	mana      float64
	cooldowns []EffectTime

	cooldownApplies int
	costApplies     int
	costChecks      int
}

func costOf(cost *CostDef, level float64) float64 {
	var n float64
	for _, m := range cost.Modifiers {
		n += m.Magnitude.AtLevel(level)
	}
	return n
}

func (e *fakeEffects) ApplyCooldown(cd *CooldownDef, level float64, ctx EffectContext) {
	e.cooldownApplies++
	e.owner.owned.Update(cd.GrantedTags, 1)
	d := cd.Duration.AtLevel(level)
	e.cooldowns = append(e.cooldowns, EffectTime{Remaining: d, Duration: d})
}

func (e *fakeEffects) CanApplyCost(cost *CostDef, level float64, ctx EffectContext) bool {
	e.costChecks++
	return e.mana+costOf(cost, level) >= 0
}

func (e *fakeEffects) ApplyCost(cost *CostDef, level float64, ctx EffectContext) {
	e.costApplies++
	e.mana += costOf(cost, level)
}

func (e *fakeEffects) TimeRemaining(query tags.Container) []EffectTime {
	return append([]EffectTime(nil), e.cooldowns...)
}

// fakeOwner records every notification it receives and, unlike the real
// component, never touches the spec's active count on end.
type fakeOwner struct {
	specs         map[Handle]*Spec
	owned         *tags.CountContainer
	blocked       *tags.CountContainer
	inhibited     bool
	blockedInputs map[int]bool
	effects       *fakeEffects
	customBlocked func(tags.Container) bool

	calls     []string
	scheduled []func()
}

func newFakeOwner() *fakeOwner {
	o := &fakeOwner{
		specs:         map[Handle]*Spec{},
		owned:         tags.NewCountContainer(),
		blocked:       tags.NewCountContainer(),
		blockedInputs: map[int]bool{},
	}
	o.effects = &fakeEffects{owner: o}
	return o
}

func (o *fakeOwner) FindSpec(h Handle) *Spec { return o.specs[h] }
func (o *fakeOwner) OwnedTags() tags.Container { return o.owned.Explicit() }
func (o *fakeOwner) BlockedAbilityTags() tags.Container { return o.blocked.Explicit() }
func (o *fakeOwner) UserActivationInhibited() bool { return o.inhibited }
func (o *fakeOwner) IsInputBlocked(id int) bool { return o.blockedInputs[id] }
func (o *fakeOwner) Effects() Effects { return o.effects }

func (o *fakeOwner) AreAbilityTagsBlocked(t tags.Container) bool {
	if o.customBlocked != nil {
		return o.customBlocked(t)
	}
	return t.HasAny(o.blocked.Explicit())
}

func (o *fakeOwner) MutateOwnedTags(t tags.Container, policy TagReplicationPolicy, add bool) {
	delta := -1
	if add {
		delta = 1
	}
	o.owned.Update(t, delta)
	o.calls = append(o.calls, fmt.Sprintf("tags:%s:%v", policy, add))
}

func (o *fakeOwner) NotifyActivated(h Handle, a *Instance) {
	o.calls = append(o.calls, "activated")
}

func (o *fakeOwner) NotifyEnded(h Handle, a *Instance, wasCancelled bool) {
	o.calls = append(o.calls, fmt.Sprintf("ended:%v", wasCancelled))
}

func (o *fakeOwner) NotifyCommitted(a *Instance) { o.calls = append(o.calls, "committed") }

func (o *fakeOwner) ApplyBlockAndCancelTags(assetTags tags.Container, requesting *Instance, enableBlock bool, blockTags tags.Container, executeCancel bool, cancelTags tags.Container) {
	if enableBlock {
		o.blocked.Update(blockTags, 1)
	} else {
		o.blocked.Update(blockTags, -1)
	}
	o.calls = append(o.calls, fmt.Sprintf("block:%v:%v", enableBlock, executeCancel))
}

func (o *fakeOwner) HandleCancelableChanged(assetTags tags.Container, a *Instance, can bool) {
	o.calls = append(o.calls, fmt.Sprintf("cancelable:%v", can))
}

func (o *fakeOwner) ClearReplicatedDataCache(h Handle, act ActivationInfo) {
	o.calls = append(o.calls, "clear-cache")
}

func (o *fakeOwner) ReplicateEndOrCancel(h Handle, act ActivationInfo, a *Instance, wasCancelled bool) {
	o.calls = append(o.calls, fmt.Sprintf("replicate:%v", wasCancelled))
}

func (o *fakeOwner) AddCue(tag tags.Tag, a *Instance) { o.calls = append(o.calls, "cue+:"+string(tag)) }
func (o *fakeOwner) RemoveCue(tag tags.Tag) { o.calls = append(o.calls, "cue-:"+string(tag)) }
func (o *fakeOwner) ExecuteCue(tag tags.Tag, a *Instance) { o.calls = append(o.calls, "cue!:"+string(tag)) }

func (o *fakeOwner) ScheduleNextTick(fn func()) { o.scheduled = append(o.scheduled, fn) }

func (o *fakeOwner) runNextTick() {
	fns := o.scheduled
	o.scheduled = nil
	for _, fn := range fns {
		fn()
	}
}

func (o *fakeOwner) count(call string) int {
	n := 0
	for _, c := range o.calls {
		if c == call {
			n++
		}
	}
	return n
}

type rig struct {
	owner  *fakeOwner
	avatar *fakeAvatar
	info   *ActorInfo
	cfg    Config
}

func newRig() *rig {
	r := &rig{owner: newFakeOwner(), avatar: &fakeAvatar{role: RoleAuthority}, cfg: DefaultConfig()}
	r.info = &ActorInfo{OwnerID: "p1", AvatarID: "p1", Dir: &fakeDir{owner: r.owner, avatar: r.avatar}}
	return r
}

// grant installs a spec with a template and, for per-actor abilities, the
// primary instance.
func (r *rig) grant(h Handle, def *Definition) *Spec {
	def.Normalize()
	spec := &Spec{Handle: h, Def: def, Level: 1}
	spec.Template = NewTemplate(def, &r.cfg, nil)
	if def.Instancing == InstancedPerActor {
		spec.Instances = append(spec.Instances, NewInstance(def, &r.cfg, nil))
	}
	r.owner.specs[h] = spec
	return spec
}

type fakeTask struct {
	name  string
	owner *Instance
	log   *[]string

	remote bool
	avatar bool

	// onEnd runs after EndTask has deregistered the task.
	onEnd func()
}

func (t *fakeTask) InstanceName() string { return t.name }

func (t *fakeTask) OwnerEnded() {
	*t.log = append(*t.log, "owner-ended:"+t.name)
	t.owner.DeregisterTask(t)
}

func (t *fakeTask) EndTask() {
	*t.log = append(*t.log, "end:"+t.name)
	t.owner.DeregisterTask(t)
	if t.onEnd != nil {
		t.onEnd()
	}
}

func (t *fakeTask) ExternalCancel() {
	*t.log = append(*t.log, "cancel:"+t.name)
	t.owner.DeregisterTask(t)
}

func (t *fakeTask) ExternalConfirm(endTask bool) {
	*t.log = append(*t.log, fmt.Sprintf("confirm:%s:%v", t.name, endTask))
	if endTask {
		t.owner.DeregisterTask(t)
	}
}

func (t *fakeTask) IsWaitingOnRemotePlayerData() bool { return t.remote }
func (t *fakeTask) IsWaitingOnAvatar() bool { return t.avatar }
