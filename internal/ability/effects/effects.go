// Package effects keeps an actor's attributes and timed tag-granting effects.
package effects

import (
	"sort"

	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

// TagSink receives the tags granted and revoked by timed effects.
type TagSink interface {
	UpdateTagCount(c tags.Container, delta int)
}

type Attribute struct {
	Base    float64 `json:"base"`
	Current float64 `json:"current"`
}

// Active is one running timed effect. Duration < 0 means it lasts until
// removed.
type Active struct {
	ID          uint64          `json:"id"`
	Source      string          `json:"source"`
	Instigator  ability.ActorID `json:"instigator,omitempty"`
	GrantedTags tags.Container  `json:"granted_tags"`
	Duration    float64         `json:"duration"`
	Remaining   float64         `json:"remaining"`
}

func (e Active) Infinite() bool { return e.Duration < 0 }

// Timed describes an effect to apply.
type Timed struct {
	Source      string
	Instigator  ability.ActorID
	GrantedTags tags.Container
	Duration    float64
}

// Container is the effect subsystem of one actor. It implements
// ability.Effects. Not safe for concurrent use.
type Container struct {
	attrs  map[string]*Attribute
	active []*Active
	nextID uint64

	sink TagSink
	log  *zap.Logger

	// OnAttributeChange, if set, is called after a current value changes.
	OnAttributeChange func(name string, old, now float64)
}

func New(sink TagSink, log *zap.Logger) *Container {
	if log == nil {
		log = zap.NewNop()
	}
	return &Container{attrs: map[string]*Attribute{}, sink: sink, log: log}
}

var _ ability.Effects = (*Container)(nil)

func (c *Container) SetAttribute(name string, base float64) {
	a, ok := c.attrs[name]
	if !ok {
		a = &Attribute{}
		c.attrs[name] = a
	}
	old := a.Current
	a.Base = base
	a.Current = base
	if ok && old != base && c.OnAttributeChange != nil {
		c.OnAttributeChange(name, old, base)
	}
}

func (c *Container) Attribute(name string) (float64, bool) {
	a, ok := c.attrs[name]
	if !ok {
		return 0, false
	}
	return a.Current, true
}

// Attributes returns the current values keyed by name.
func (c *Container) Attributes() map[string]float64 {
	out := make(map[string]float64, len(c.attrs))
	for k, a := range c.attrs {
		out[k] = a.Current
	}
	return out
}

func (c *Container) magnitude(m ability.Modifier, level float64, ctx ability.EffectContext) float64 {
	if m.SetByCaller.IsValid() {
		v, ok := ctx.SetByCaller[m.SetByCaller]
		if !ok {
			c.log.Warn("set-by-caller magnitude missing", zap.String("ability", ctx.AbilityID), zap.String("tag", string(m.SetByCaller)))
			return 0
		}
		return v
	}
	return m.Magnitude.AtLevel(level)
}

// CanApplyModifiers reports whether applying mods would keep every
// attribute at or above zero. It does not change anything.
func (c *Container) CanApplyModifiers(mods []ability.Modifier, level float64, ctx ability.EffectContext) bool {
	pending := map[string]float64{}
	for _, m := range mods {
		cur, ok := pending[m.Attribute]
		if !ok {
			cur, _ = c.Attribute(m.Attribute)
		}
		cur += c.magnitude(m, level, ctx)
		if cur < 0 {
			return false
		}
		pending[m.Attribute] = cur
	}
	return true
}

// ApplyModifiers applies additive modifiers to current values.
func (c *Container) ApplyModifiers(mods []ability.Modifier, level float64, ctx ability.EffectContext) {
	for _, m := range mods {
		a, ok := c.attrs[m.Attribute]
		if !ok {
			a = &Attribute{}
			c.attrs[m.Attribute] = a
		}
		old := a.Current
		a.Current += c.magnitude(m, level, ctx)
		if c.OnAttributeChange != nil && a.Current != old {
			c.OnAttributeChange(m.Attribute, old, a.Current)
		}
	}
}

func (c *Container) CanApplyCost(cost *ability.CostDef, level float64, ctx ability.EffectContext) bool {
	if cost == nil {
		return true
	}
	return c.CanApplyModifiers(cost.Modifiers, level, ctx)
}

func (c *Container) ApplyCost(cost *ability.CostDef, level float64, ctx ability.EffectContext) {
	if cost == nil {
		return
	}
	c.ApplyModifiers(cost.Modifiers, level, ctx)
}

func (c *Container) ApplyCooldown(cd *ability.CooldownDef, level float64, ctx ability.EffectContext) {
	if cd == nil {
		return
	}
	d := cd.Duration.AtLevel(level)
	if d <= 0 {
		return
	}
	c.ApplyTimed(Timed{Source: ctx.AbilityID, Instigator: ctx.InstigatorID, GrantedTags: cd.GrantedTags, Duration: d})
}

// ApplyTimed starts a timed effect and grants its tags. A zero duration
// does nothing.
func (c *Container) ApplyTimed(t Timed) uint64 {
	if t.Duration == 0 {
		return 0
	}
	c.nextID++
	e := &Active{
		ID:          c.nextID,
		Source:      t.Source,
		Instigator:  t.Instigator,
		GrantedTags: t.GrantedTags.Clone(),
		Duration:    t.Duration,
		Remaining:   t.Duration,
	}
	c.active = append(c.active, e)
	if c.sink != nil {
		c.sink.UpdateTagCount(e.GrantedTags, 1)
	}
	return e.ID
}

// TimeRemaining lists the effects granting any tag of query.
func (c *Container) TimeRemaining(query tags.Container) []ability.EffectTime {
	var out []ability.EffectTime
	for _, e := range c.active {
		if !e.GrantedTags.HasAny(query) {
			continue
		}
		out = append(out, ability.EffectTime{Remaining: e.Remaining, Duration: e.Duration})
	}
	return out
}

// Advance ticks every finite effect by dt and removes the expired ones in
// application order.
func (c *Container) Advance(dt float64) []Active {
	if dt <= 0 {
		return nil
	}
	var expired []Active
	kept := c.active[:0]
	for _, e := range c.active {
		if !e.Infinite() {
			e.Remaining -= dt
			if e.Remaining <= 0 {
				e.Remaining = 0
				expired = append(expired, *e)
				continue
			}
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(c.active); i++ {
		c.active[i] = nil
	}
	c.active = kept
	if c.sink != nil {
		for _, e := range expired {
			c.sink.UpdateTagCount(e.GrantedTags, -1)
		}
	}
	return expired
}

func (c *Container) RemoveEffect(id uint64) bool {
	for i, e := range c.active {
		if e.ID != id {
			continue
		}
		c.active = append(c.active[:i], c.active[i+1:]...)
		if c.sink != nil {
			c.sink.UpdateTagCount(e.GrantedTags, -1)
		}
		return true
	}
	return false
}

// RemoveEffectsWithTags removes every effect granting a tag of query and
// returns how many were removed.
func (c *Container) RemoveEffectsWithTags(query tags.Container) int {
	var ids []uint64
	for _, e := range c.active {
		if e.GrantedTags.HasAny(query) {
			ids = append(ids, e.ID)
		}
	}
	for _, id := range ids {
		c.RemoveEffect(id)
	}
	return len(ids)
}

func (c *Container) ActiveEffects() []Active {
	out := make([]Active, 0, len(c.active))
	for _, e := range c.active {
		out = append(out, *e)
	}
	return out
}

// State is the persisted form of a Container.
type State struct {
	Attributes map[string]Attribute `json:"attributes"`
	Active     []Active             `json:"active"`
	NextID     uint64               `json:"next_id"`
}

func (c *Container) Export() State {
	s := State{Attributes: make(map[string]Attribute, len(c.attrs)), NextID: c.nextID}
	for k, a := range c.attrs {
		s.Attributes[k] = *a
	}
	s.Active = c.ActiveEffects()
	return s
}

// Import replaces the container state. Granted tags are not pushed to the
// sink: owners restore their tag counts from their own snapshot.
func (c *Container) Import(s State) {
	c.attrs = make(map[string]*Attribute, len(s.Attributes))
	keys := make([]string, 0, len(s.Attributes))
	for k := range s.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a := s.Attributes[k]
		c.attrs[k] = &a
	}
	c.active = c.active[:0]
	for _, e := range s.Active {
		c.active = append(c.active, &e)
	}
	c.nextID = s.NextID
}
