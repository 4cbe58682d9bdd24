package ability

import "github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"

// TagRequirements are the static tag sets an ability is gated by.
type TagRequirements struct {
	AssetTags          tags.Container
	ActivationRequired tags.Container
	ActivationBlocked  tags.Container
	SourceRequired     tags.Container
	SourceBlocked      tags.Container
	TargetRequired     tags.Container
	TargetBlocked      tags.Container
}

// TagInput is the tag state the requirements are evaluated against. Source
// and Target are optional. AreAbilityTagsBlocked is the owner's opaque
// blocking rule, consulted only when the static sets found nothing.
type TagInput struct {
	OwnedTags             tags.Container
	BlockedAbilityTags    tags.Container
	Source                *tags.Container
	Target                *tags.Container
	AreAbilityTagsBlocked func(assetTags tags.Container) bool
}

func (d *Definition) Requirements() TagRequirements {
	return TagRequirements{
		AssetTags:          d.AssetTags,
		ActivationRequired: d.ActivationRequiredTags,
		ActivationBlocked:  d.ActivationBlockedTags,
		SourceRequired:     d.SourceRequiredTags,
		SourceBlocked:      d.SourceBlockedTags,
		TargetRequired:     d.TargetRequiredTags,
		TargetBlocked:      d.TargetBlockedTags,
	}
}

// EvaluateTagRequirements reports whether req is satisfied by in. Blocked
// checks all run before required checks and none short-circuits, so relevant
// (when non-nil) collects every reason in a fixed order.
func EvaluateTagRequirements(req TagRequirements, in TagInput, marks FailTags, relevant *tags.Container) bool {
	blocked := false
	missing := false

	checkBlocked := func(a, b tags.Container) {
		if a.IsEmpty() || b.IsEmpty() || !a.HasAny(b) {
			return
		}
		if relevant != nil {
			if !blocked && marks.Blocked.IsValid() {
				relevant.Add(marks.Blocked)
			}
			relevant.AppendMatching(a, b)
		}
		blocked = true
	}
	checkRequired := func(checked, required tags.Container) {
		if required.IsEmpty() || checked.HasAll(required) {
			return
		}
		if relevant != nil {
			if !missing && marks.Missing.IsValid() {
				relevant.Add(marks.Missing)
			}
			unmet := required.Clone()
			unmet.RemoveAll(checked.Parents())
			relevant.Append(unmet)
		}
		missing = true
	}

	checkBlocked(req.AssetTags, in.BlockedAbilityTags)
	checkBlocked(in.OwnedTags, req.ActivationBlocked)
	if in.Source != nil {
		checkBlocked(*in.Source, req.SourceBlocked)
	}
	if in.Target != nil {
		checkBlocked(*in.Target, req.TargetBlocked)
	}

	checkRequired(in.OwnedTags, req.ActivationRequired)
	if in.Source != nil {
		checkRequired(*in.Source, req.SourceRequired)
	}
	if in.Target != nil {
		checkRequired(*in.Target, req.TargetRequired)
	}

	if !blocked && !missing && in.AreAbilityTagsBlocked != nil && in.AreAbilityTagsBlocked(req.AssetTags) {
		if relevant != nil && marks.Blocked.IsValid() {
			relevant.Add(marks.Blocked)
		}
		blocked = true
	}
	return !blocked && !missing
}

// DoesSatisfyTagRequirements evaluates the ability's requirements against
// its owner.
func (a *Instance) DoesSatisfyTagRequirements(owner Owner, source, target *tags.Container, relevant *tags.Container) bool {
	in := TagInput{
		OwnedTags:             owner.OwnedTags(),
		BlockedAbilityTags:    owner.BlockedAbilityTags(),
		Source:                source,
		Target:                target,
		AreAbilityTagsBlocked: owner.AreAbilityTagsBlocked,
	}
	return EvaluateTagRequirements(a.def.Requirements(), in, a.cfg.FailTags, relevant)
}
