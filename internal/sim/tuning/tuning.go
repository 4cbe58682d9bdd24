package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	Ability ability.Config `yaml:"ability"`
	Starter Starter        `yaml:"starter"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

// Starter is what every joining actor begins with.
type Starter struct {
	Attributes map[string]float64 `yaml:"attributes"`
	Abilities  []StarterAbility   `yaml:"abilities"`
	LooseTags  []string           `yaml:"loose_tags"`
}

type StarterAbility struct {
	ID      string `yaml:"id"`
	Level   int    `yaml:"level"`
	InputID *int   `yaml:"input_id"`
}

type RateLimits struct {
	CommandsPerTick int `yaml:"commands_per_tick"`
	EventsPerTick   int `yaml:"events_per_tick"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         20,
		SnapshotEveryTicks: 1200,
		Ability:            ability.DefaultConfig(),
		Starter: Starter{
			Attributes: map[string]float64{"Health": 100, "Mana": 50, "Stamina": 30},
		},
		RateLimits: RateLimits{CommandsPerTick: 8, EventsPerTick: 4},
	}
}

// TickSeconds is the simulated duration of one tick.
func (t Tuning) TickSeconds() float64 { return 1 / float64(t.TickRateHz) }

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	}
	if t.SnapshotEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks must be >= 0")
	}
	if t.RateLimits.CommandsPerTick <= 0 {
		return fmt.Errorf("rate_limits.commands_per_tick must be > 0")
	}
	if t.RateLimits.EventsPerTick <= 0 {
		return fmt.Errorf("rate_limits.events_per_tick must be > 0")
	}
	for i, a := range t.Starter.Abilities {
		if a.ID == "" {
			return fmt.Errorf("starter.abilities[%d]: missing id", i)
		}
	}
	if err := t.Ability.Validate(); err != nil {
		return fmt.Errorf("ability: %w", err)
	}
	return nil
}

// Load overlays the yaml file at path on Defaults and validates the result.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Ability.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
