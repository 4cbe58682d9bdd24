package effects

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

type countSink struct{ cc *tags.CountContainer }

func (s countSink) UpdateTagCount(c tags.Container, delta int) { s.cc.Update(c, delta) }

func TestContainer_CostDryRunDoesNotMutate(t *testing.T) {
	c := New(nil, nil)
	c.SetAttribute("Mana", 10)
	cost := &ability.CostDef{Modifiers: []ability.Modifier{
		{Attribute: "Mana", Magnitude: ability.Flat(-6)},
		{Attribute: "Mana", Magnitude: ability.Flat(-6)},
	}}

	require.False(t, c.CanApplyCost(cost, 1, ability.EffectContext{}))
	mana, _ := c.Attribute("Mana")
	require.Equal(t, 10.0, mana)

	cost.Modifiers = cost.Modifiers[:1]
	require.True(t, c.CanApplyCost(cost, 1, ability.EffectContext{}))
	c.ApplyCost(cost, 1, ability.EffectContext{})
	mana, _ = c.Attribute("Mana")
	require.Equal(t, 4.0, mana)
}

func TestContainer_SetByCaller(t *testing.T) {
	c := New(nil, nil)
	c.SetAttribute("Stamina", 5)
	cost := &ability.CostDef{Modifiers: []ability.Modifier{
		{Attribute: "Stamina", SetByCaller: "Data.Cost"},
	}}
	ctx := ability.EffectContext{SetByCaller: map[tags.Tag]float64{"Data.Cost": -5}}

	require.True(t, c.CanApplyCost(cost, 1, ctx))
	c.ApplyCost(cost, 1, ctx)
	v, _ := c.Attribute("Stamina")
	require.Equal(t, 0.0, v)

	ctx.SetByCaller["Data.Cost"] = -1
	require.False(t, c.CanApplyCost(cost, 1, ctx))
}

func TestContainer_CooldownGrantsTagsUntilExpiry(t *testing.T) {
	cc := tags.NewCountContainer()
	c := New(countSink{cc}, nil)
	cd := &ability.CooldownDef{
		GrantedTags: tags.New("Cooldown.Dash"),
		Duration:    ability.ScalableFloat{Value: 2, Curve: []ability.CurvePoint{{Level: 1, Scale: 1}, {Level: 2, Scale: 2}}},
	}

	c.ApplyCooldown(cd, 2, ability.EffectContext{AbilityID: "dash"})
	c.ApplyCooldown(cd, 1, ability.EffectContext{AbilityID: "dash"})
	require.Equal(t, 2, cc.Count("Cooldown.Dash"))

	times := c.TimeRemaining(tags.New("Cooldown"))
	require.Len(t, times, 2)
	require.Equal(t, 4.0, times[0].Remaining)
	require.Equal(t, 2.0, times[1].Remaining)

	expired := c.Advance(2)
	require.Len(t, expired, 1)
	require.Equal(t, 1, cc.Count("Cooldown.Dash"))

	c.Advance(5)
	require.False(t, cc.HasTag("Cooldown.Dash"))
	require.Empty(t, c.TimeRemaining(tags.New("Cooldown")))
}

func TestContainer_InfiniteAndRemove(t *testing.T) {
	cc := tags.NewCountContainer()
	c := New(countSink{cc}, nil)
	id := c.ApplyTimed(Timed{Source: "aura", GrantedTags: tags.New("State.Shielded"), Duration: -1})
	c.ApplyTimed(Timed{Source: "stun", GrantedTags: tags.New("State.Stunned"), Duration: 3})

	c.Advance(100)
	require.True(t, cc.HasTag("State.Shielded"))
	require.False(t, cc.HasTag("State.Stunned"))

	require.True(t, c.RemoveEffect(id))
	require.False(t, c.RemoveEffect(id))
	require.False(t, cc.HasTag("State.Shielded"))

	c.ApplyTimed(Timed{GrantedTags: tags.New("State.Slowed.Ice"), Duration: 9})
	require.Equal(t, 1, c.RemoveEffectsWithTags(tags.New("State.Slowed")))
	require.Empty(t, c.ActiveEffects())
}

func TestContainer_ExportImport(t *testing.T) {
	c := New(nil, nil)
	c.SetAttribute("Health", 50)
	c.ApplyTimed(Timed{Source: "x", GrantedTags: tags.New("A"), Duration: 4})
	c.Advance(1)

	other := New(nil, nil)
	other.Import(c.Export())
	require.Equal(t, c.Attributes(), other.Attributes())
	require.Equal(t, c.ActiveEffects(), other.ActiveEffects())
	require.Equal(t, uint64(2), other.ApplyTimed(Timed{GrantedTags: tags.New("B"), Duration: 1}))
}
