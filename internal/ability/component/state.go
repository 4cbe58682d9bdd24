package component

import (
	"fmt"
	"sort"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/effects"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

// SpecView is the observable state of one granted spec.
type SpecView struct {
	Handle            ability.Handle `json:"handle"`
	AbilityID         string         `json:"ability"`
	Level             int            `json:"level"`
	InputID           int            `json:"input_id"`
	ActiveCount       uint8          `json:"active_count"`
	State             ability.State  `json:"state"`
	CooldownRemaining float64        `json:"cooldown_remaining,omitempty"`
}

// View is a read-only summary of a component for status output.
type View struct {
	Actor      ability.ActorID    `json:"actor"`
	OwnedTags  []string           `json:"owned_tags"`
	Blocked    []string           `json:"blocked_tags,omitempty"`
	Attributes map[string]float64 `json:"attributes"`
	Specs      []SpecView         `json:"specs"`
	Cues       []string           `json:"cues,omitempty"`
	Inhibited  bool               `json:"inhibited,omitempty"`
}

func sortedStrings(t tags.Container) []string {
	out := make([]string, 0, t.Len())
	for _, tag := range t.Sorted() {
		out = append(out, string(tag))
	}
	return out
}

func (c *Component) View() View {
	v := View{
		Actor:      c.id,
		OwnedTags:  sortedStrings(c.owned.Explicit()),
		Blocked:    sortedStrings(c.blocked.Explicit()),
		Attributes: c.effects.Attributes(),
		Cues:       c.ActiveCues(),
		Inhibited:  c.inhibited,
	}
	for _, s := range c.specs {
		sv := SpecView{
			Handle:      s.Handle,
			AbilityID:   s.Def.ID,
			Level:       s.Level,
			InputID:     s.InputID,
			ActiveCount: s.ActiveCount,
			State:       ability.StateInactive,
		}
		if p := s.PrimaryInstance(); p != nil {
			sv.State = p.State()
		} else if s.IsActive() {
			sv.State = ability.StateActive
		}
		if s.Template != nil {
			sv.CooldownRemaining = s.Template.CooldownTimeRemaining(c.info)
		}
		v.Specs = append(v.Specs, sv)
	}
	return v
}

// SpecState is the persisted form of a granted spec.
type SpecState struct {
	Handle      ability.Handle     `json:"handle"`
	AbilityID   string             `json:"ability"`
	Level       int                `json:"level"`
	InputID     int                `json:"input_id"`
	SourceID    string             `json:"source_id,omitempty"`
	SetByCaller map[string]float64 `json:"set_by_caller,omitempty"`
}

// State is the persisted form of a component. Activations are not
// persisted: a restored component has every ability inactive.
type State struct {
	Actor         ability.ActorID `json:"actor"`
	Specs         []SpecState     `json:"specs"`
	LooseTags     map[string]int  `json:"loose_tags,omitempty"`
	BlockedInputs map[int]int     `json:"blocked_inputs,omitempty"`
	Inhibited     bool            `json:"inhibited,omitempty"`
	Effects       effects.State   `json:"effects"`
	NextHandle    ability.Handle  `json:"next_handle"`
	NextKey       uint32          `json:"next_key"`
}

// Export snapshots the component. Tags owned because an ability is active
// are left out, since the activation itself is not kept.
func (c *Component) Export() State {
	s := State{
		Actor:      c.id,
		Effects:    c.effects.Export(),
		Inhibited:  c.inhibited,
		NextHandle: c.nextHandle,
		NextKey:    c.nextKey,
	}
	for _, spec := range c.specs {
		ss := SpecState{
			Handle:    spec.Handle,
			AbilityID: spec.Def.ID,
			Level:     spec.Level,
			InputID:   spec.InputID,
			SourceID:  spec.SourceID,
		}
		if len(spec.SetByCaller) > 0 {
			ss.SetByCaller = make(map[string]float64, len(spec.SetByCaller))
			for k, v := range spec.SetByCaller {
				ss.SetByCaller[string(k)] = v
			}
		}
		s.Specs = append(s.Specs, ss)
	}

	loose := c.replicated.Snapshot()
	for _, spec := range c.specs {
		if !spec.IsActive() || !c.activationTagsReplicated(spec.Def) {
			continue
		}
		for _, t := range spec.Def.ActivationOwnedTags.Tags() {
			n := loose[string(t)] - int(spec.ActiveCount)
			if n <= 0 {
				delete(loose, string(t))
			} else {
				loose[string(t)] = n
			}
		}
	}
	if len(loose) > 0 {
		s.LooseTags = loose
	}
	if len(c.blockedInputs) > 0 {
		s.BlockedInputs = make(map[int]int, len(c.blockedInputs))
		for k, v := range c.blockedInputs {
			s.BlockedInputs[k] = v
		}
	}
	return s
}

// activationTagsReplicated reports whether def's activation-owned tags land
// in the replicated loose tier.
func (c *Component) activationTagsReplicated(def *ability.Definition) bool {
	if !c.cfg.ReplicateActivationOwnedTags || def.ActivationOwnedTags.IsEmpty() {
		return false
	}
	return def.NetExecution == ability.LocalOnly || def.NetExecution == ability.ServerOnly
}

// Import replaces the component's abilities, tags and effects with s.
// lookup resolves ability ids. The component must have no active
// abilities.
func (c *Component) Import(s State, lookup func(id string) (*ability.Definition, bool)) error {
	for _, spec := range c.specs {
		if spec.IsActive() {
			return fmt.Errorf("component %s: import with active ability %s", c.id, spec.Def.ID)
		}
	}
	specs := make([]*ability.Spec, 0, len(s.Specs))
	for _, ss := range s.Specs {
		def, ok := lookup(ss.AbilityID)
		if !ok {
			return fmt.Errorf("component %s: unknown ability %q", c.id, ss.AbilityID)
		}
		spec := &ability.Spec{
			Handle:   ss.Handle,
			Def:      def,
			Level:    ss.Level,
			InputID:  ss.InputID,
			SourceID: ss.SourceID,
		}
		if len(ss.SetByCaller) > 0 {
			spec.SetByCaller = make(map[tags.Tag]float64, len(ss.SetByCaller))
			for k, v := range ss.SetByCaller {
				spec.SetByCaller[tags.Tag(k)] = v
			}
		}
		specs = append(specs, spec)
	}

	c.specs = nil
	c.eventTriggers = map[tags.Tag][]ability.Handle{}
	c.ownedTagTriggers = map[tags.Tag][]ability.Handle{}
	c.replicatedData = map[dataKey]*replicatedData{}
	c.cues = map[tags.Tag]int{}
	c.minimal.Restore(nil)
	c.blocked.Restore(nil)

	c.effects.Import(s.Effects)
	owned := map[string]int{}
	for k, v := range s.LooseTags {
		owned[k] += v
	}
	for _, e := range s.Effects.Active {
		for _, t := range e.GrantedTags.Tags() {
			owned[string(t)]++
		}
	}
	c.replicated.Restore(s.LooseTags)
	c.owned.Restore(owned)

	c.blockedInputs = map[int]int{}
	for k, v := range s.BlockedInputs {
		c.blockedInputs[k] = v
	}
	c.inhibited = s.Inhibited
	c.nextKey = s.NextKey

	c.IncrementAbilityListLock()
	for _, spec := range specs {
		c.specs = append(c.specs, spec)
		c.onGiveAbility(spec)
	}
	c.DecrementAbilityListLock()

	c.nextHandle = s.NextHandle
	for _, spec := range c.specs {
		if spec.Handle > c.nextHandle {
			c.nextHandle = spec.Handle
		}
	}
	return nil
}

// Handles returns the granted handles in ascending order.
func (c *Component) Handles() []ability.Handle {
	out := make([]ability.Handle, 0, len(c.specs))
	for _, s := range c.specs {
		out = append(out, s.Handle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
