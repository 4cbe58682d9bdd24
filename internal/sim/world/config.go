package world

import "github.com/VMF-HIBIKI/GAS-Learning/internal/sim/tuning"

type WorldConfig struct {
	ID string

	// Tuning carries the tick rate, the ability config, starter grants and
	// rate limits. It can be replaced at runtime with UpdateTuning.
	Tuning tuning.Tuning

	// TuningDigest is reported in WELCOME so clients can tell reloads apart.
	TuningDigest string
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "arena"
	}
	d := tuning.Defaults()
	if c.Tuning.TickRateHz <= 0 {
		c.Tuning.TickRateHz = d.TickRateHz
	}
	if c.Tuning.RateLimits.CommandsPerTick <= 0 {
		c.Tuning.RateLimits.CommandsPerTick = d.RateLimits.CommandsPerTick
	}
	if c.Tuning.RateLimits.EventsPerTick <= 0 {
		c.Tuning.RateLimits.EventsPerTick = d.RateLimits.EventsPerTick
	}
	if c.Tuning.SnapshotEveryTicks < 0 {
		c.Tuning.SnapshotEveryTicks = 0
	}
	c.Tuning.Ability.Normalize()
}
