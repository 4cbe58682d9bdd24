package abilities

import (
	"sort"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
)

// Passive stays active until cancelled or ended from outside. Its effect is
// the activation-owned tags of its definition.
type Passive struct{ ability.Base }

// Instant commits and ends in one call; a failed commit ends it cancelled.
type Instant struct{ ability.Base }

func (Instant) Activate(a *ability.Instance, h ability.Handle, info *ability.ActorInfo, act ability.ActivationInfo, _ *ability.EventData) {
	if !a.Commit(h, info, act, nil) {
		a.End(h, info, act, true, true)
		return
	}
	a.End(h, info, act, true, false)
}

var natives = map[string]func() ability.Behavior{
	"PASSIVE": func() ability.Behavior { return Passive{} },
	"INSTANT": func() ability.Behavior { return Instant{} },
}

// Native looks up a behavior written in Go by name.
func Native(name string) (func() ability.Behavior, bool) {
	fn, ok := natives[name]
	return fn, ok
}

func NativeNames() []string {
	out := make([]string, 0, len(natives))
	for k := range natives {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
