package ability

import (
	"errors"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

// FailTags are the diagnostic markers appended when activation fails.
type FailTags struct {
	Blocked     tags.Tag `yaml:"blocked" json:"blocked"`
	Missing     tags.Tag `yaml:"missing" json:"missing"`
	Cooldown    tags.Tag `yaml:"cooldown" json:"cooldown"`
	Cost        tags.Tag `yaml:"cost" json:"cost"`
	Networking  tags.Tag `yaml:"networking" json:"networking"`
	CanActivate tags.Tag `yaml:"can_activate" json:"can_activate"`
}

// Config is shared by every gate, commit and lifecycle call of a world.
type Config struct {
	IgnoreCooldowns              bool     `yaml:"ignore_cooldowns" json:"ignore_cooldowns"`
	IgnoreCosts                  bool     `yaml:"ignore_costs" json:"ignore_costs"`
	ReplicateActivationOwnedTags bool     `yaml:"replicate_activation_owned_tags" json:"replicate_activation_owned_tags"`
	FailTags                     FailTags `yaml:"fail_tags" json:"fail_tags"`
}

func DefaultConfig() Config {
	return Config{
		ReplicateActivationOwnedTags: true,
		FailTags: FailTags{
			Blocked:     "Activate.Fail.TagsBlocked",
			Missing:     "Activate.Fail.TagsMissing",
			Cooldown:    "Activate.Fail.Cooldown",
			Cost:        "Activate.Fail.Cost",
			Networking:  "Activate.Fail.Networking",
			CanActivate: "Activate.Fail.CanActivateAbility",
		},
	}
}

// Normalize fills blank fail tags from the defaults.
func (c *Config) Normalize() {
	d := DefaultConfig().FailTags
	fill := func(dst *tags.Tag, def tags.Tag) {
		if !dst.IsValid() {
			*dst = def
		}
	}
	fill(&c.FailTags.Blocked, d.Blocked)
	fill(&c.FailTags.Missing, d.Missing)
	fill(&c.FailTags.Cooldown, d.Cooldown)
	fill(&c.FailTags.Cost, d.Cost)
	fill(&c.FailTags.Networking, d.Networking)
	fill(&c.FailTags.CanActivate, d.CanActivate)
}

func (c Config) Validate() error {
	seen := map[tags.Tag]string{}
	for name, t := range map[string]tags.Tag{
		"blocked":      c.FailTags.Blocked,
		"missing":      c.FailTags.Missing,
		"cooldown":     c.FailTags.Cooldown,
		"cost":         c.FailTags.Cost,
		"networking":   c.FailTags.Networking,
		"can_activate": c.FailTags.CanActivate,
	} {
		if !t.IsValid() {
			continue
		}
		if other, ok := seen[t]; ok {
			return errors.New("fail tags " + other + " and " + name + " share " + string(t))
		}
		seen[t] = name
	}
	return nil
}
