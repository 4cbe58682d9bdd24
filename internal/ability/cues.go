package ability

import "github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"

// AddCue starts a persistent cue. With removeOnEnd the cue is removed when
// this activation ends.
func (a *Instance) AddCue(tag tags.Tag, removeOnEnd bool) {
	owner, ok := a.Owner()
	if !ok {
		a.usage("AddCue without component")
		return
	}
	owner.AddCue(tag, a)
	if removeOnEnd {
		a.trackedCues = append(a.trackedCues, tag)
	}
}

func (a *Instance) RemoveCue(tag tags.Tag) {
	owner, ok := a.Owner()
	if !ok {
		a.usage("RemoveCue without component")
		return
	}
	owner.RemoveCue(tag)
	kept := a.trackedCues[:0]
	for _, t := range a.trackedCues {
		if t != tag {
			kept = append(kept, t)
		}
	}
	a.trackedCues = kept
}

// ExecuteCue fires a one-shot cue.
func (a *Instance) ExecuteCue(tag tags.Tag) {
	owner, ok := a.Owner()
	if !ok {
		a.usage("ExecuteCue without component")
		return
	}
	owner.ExecuteCue(tag, a)
}

func (a *Instance) TrackedCues() []tags.Tag { return append([]tags.Tag(nil), a.trackedCues...) }
