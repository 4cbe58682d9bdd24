package component

import (
	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

func (c *Component) OwnedTags() tags.Container { return c.owned.Explicit() }

func (c *Component) TagCount(t tags.Tag) int { return c.owned.Count(t) }

func (c *Component) HasTag(t tags.Tag) bool { return c.owned.HasTag(t) }

// MinimalReplicationTags and ReplicatedLooseTags are the tiers remote peers
// are told about.
func (c *Component) MinimalReplicationTags() tags.Container { return c.minimal.Explicit() }

func (c *Component) ReplicatedLooseTags() tags.Container { return c.replicated.Explicit() }

// MutateOwnedTags adds or removes loose owned tags and records them in the
// tier chosen by policy.
func (c *Component) MutateOwnedTags(t tags.Container, policy ability.TagReplicationPolicy, add bool) {
	if t.IsEmpty() {
		return
	}
	delta := -1
	if add {
		delta = 1
	}
	c.owned.Update(t, delta)
	switch policy {
	case ability.TagsMinimal:
		c.minimal.Update(t, delta)
	case ability.TagsReplicated:
		c.replicated.Update(t, delta)
	}
}

// AddLooseTags grants tags that are not tied to an ability or effect.
func (c *Component) AddLooseTags(t tags.Container) { c.MutateOwnedTags(t, ability.TagsReplicated, true) }

func (c *Component) RemoveLooseTags(t tags.Container) {
	c.MutateOwnedTags(t, ability.TagsReplicated, false)
}

// UpdateTagCount receives the tags granted by effects.
func (c *Component) UpdateTagCount(t tags.Container, delta int) { c.owned.Update(t, delta) }

func (c *Component) NotifyActivated(h ability.Handle, a *ability.Instance) {
	ev := c.specEvent(EventActivated, h)
	ev.PredictionKey = a.ActivationInfo().PredictionKey
	c.emit(ev)
}

// NotifyEnded releases one activation of the spec. Per-execution instances
// are dropped and specs granted for a single activation are removed.
func (c *Component) NotifyEnded(h ability.Handle, a *ability.Instance, wasCancelled bool) {
	spec := c.FindSpec(h)
	if spec == nil {
		return
	}
	if spec.ActiveCount > 0 {
		spec.ActiveCount--
	} else {
		c.log.Warn("ability ended with zero active count", zap.Stringer("handle", h), zap.String("ability", spec.Def.ID))
	}

	kind := EventEnded
	if wasCancelled {
		kind = EventCancelled
	}
	ev := c.specEvent(kind, h)
	ev.PredictionKey = a.ActivationInfo().PredictionKey
	c.emit(ev)

	if spec.Def.Instancing == ability.InstancedPerExecution {
		spec.RemoveInstance(a)
	}
	if c.isAuthority() && spec.RemoveAfterActivation && !spec.IsActive() {
		c.ClearAbility(h)
	}
}

func (c *Component) NotifyCommitted(a *ability.Instance) {
	ev := c.specEvent(EventCommitted, a.SpecHandle())
	if ev.AbilityID == "" {
		ev.AbilityID = a.Def().ID
	}
	ev.PredictionKey = a.ActivationInfo().PredictionKey
	c.emit(ev)
}

func (c *Component) HandleCancelableChanged(assetTags tags.Container, a *ability.Instance, can bool) {
	c.log.Debug("cancelable changed", zap.String("ability", a.Def().ID), zap.Bool("cancelable", can))
}

// ReplicateEndOrCancel tells a remote controller that the server ended one of
// its predicted activations.
func (c *Component) ReplicateEndOrCancel(h ability.Handle, act ability.ActivationInfo, a *ability.Instance, wasCancelled bool) {
	pol := a.Def().NetExecution
	if pol != ability.LocalPredicted && pol != ability.ServerInitiated {
		return
	}
	if !c.isAuthority() || c.info.LocallyControlled {
		return
	}
	kind := EventClientEnd
	if wasCancelled {
		kind = EventClientCancel
	}
	ev := c.specEvent(kind, h)
	ev.PredictionKey = act.PredictionKey
	c.emit(ev)
}

func (c *Component) AddCue(tag tags.Tag, a *ability.Instance) {
	c.cues[tag]++
	c.emit(Event{Kind: EventCueAdded, Handle: a.SpecHandle(), AbilityID: a.Def().ID, Tags: []string{string(tag)}})
}

func (c *Component) RemoveCue(tag tags.Tag) {
	n := c.cues[tag]
	if n == 0 {
		return
	}
	if n == 1 {
		delete(c.cues, tag)
	} else {
		c.cues[tag] = n - 1
	}
	c.emit(Event{Kind: EventCueRemoved, Tags: []string{string(tag)}})
}

func (c *Component) ExecuteCue(tag tags.Tag, a *ability.Instance) {
	c.emit(Event{Kind: EventCueExecuted, Handle: a.SpecHandle(), AbilityID: a.Def().ID, Tags: []string{string(tag)}})
}

// ActiveCues returns the cue tags currently on, sorted.
func (c *Component) ActiveCues() []string {
	var t tags.Container
	for tag := range c.cues {
		t.Add(tag)
	}
	out := make([]string, 0, t.Len())
	for _, tag := range t.Sorted() {
		out = append(out, string(tag))
	}
	return out
}
