package ability

import (
	"fmt"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

type TriggerSource string

const (
	TriggerGameplayEvent   TriggerSource = "GAMEPLAY_EVENT"
	TriggerOwnedTagAdded   TriggerSource = "OWNED_TAG_ADDED"
	TriggerOwnedTagPresent TriggerSource = "OWNED_TAG_PRESENT"
)

// Trigger activates an ability from an event or an owned tag change.
type Trigger struct {
	Tag    tags.Tag      `json:"tag" yaml:"tag"`
	Source TriggerSource `json:"source" yaml:"source"`
}

// CooldownDef describes the timed effect applied on commit.
type CooldownDef struct {
	GrantedTags tags.Container `json:"granted_tags" yaml:"granted_tags"`
	Duration    ScalableFloat  `json:"duration" yaml:"duration"`
}

// Modifier changes one attribute by an additive magnitude. A valid
// SetByCaller tag reads the magnitude from the spec instead.
type Modifier struct {
	Attribute   string        `json:"attribute" yaml:"attribute"`
	Magnitude   ScalableFloat `json:"magnitude" yaml:"magnitude"`
	SetByCaller tags.Tag      `json:"set_by_caller,omitempty" yaml:"set_by_caller,omitempty"`
}

type CostDef struct {
	Modifiers []Modifier `json:"modifiers" yaml:"modifiers"`
}

// Definition is the immutable template of an ability.
type Definition struct {
	ID string `json:"id"`

	AssetTags              tags.Container `json:"asset_tags,omitempty"`
	CancelAbilitiesWithTag tags.Container `json:"cancel_abilities_with_tag,omitempty"`
	BlockAbilitiesWithTag  tags.Container `json:"block_abilities_with_tag,omitempty"`
	ActivationOwnedTags    tags.Container `json:"activation_owned_tags,omitempty"`
	ActivationRequiredTags tags.Container `json:"activation_required_tags,omitempty"`
	ActivationBlockedTags  tags.Container `json:"activation_blocked_tags,omitempty"`
	SourceRequiredTags     tags.Container `json:"source_required_tags,omitempty"`
	SourceBlockedTags      tags.Container `json:"source_blocked_tags,omitempty"`
	TargetRequiredTags     tags.Container `json:"target_required_tags,omitempty"`
	TargetBlockedTags      tags.Container `json:"target_blocked_tags,omitempty"`

	Instancing   InstancingPolicy   `json:"instancing"`
	NetExecution NetExecutionPolicy `json:"net_execution"`
	NetSecurity  NetSecurityPolicy  `json:"net_security"`

	RetriggerInstancedAbility               bool `json:"retrigger_instanced_ability,omitempty"`
	ServerRespectsRemoteAbilityCancellation bool `json:"server_respects_remote_ability_cancellation,omitempty"`

	Cooldown *CooldownDef `json:"cooldown,omitempty"`
	Cost     *CostDef     `json:"cost,omitempty"`
	Triggers []Trigger    `json:"triggers,omitempty"`

	// NewBehavior builds the strategy for one instance. Nil means Base.
	NewBehavior func() Behavior `json:"-"`
}

// Normalize fills unset policies with their defaults.
func (d *Definition) Normalize() {
	if d.Instancing == "" {
		d.Instancing = InstancedPerActor
	}
	if d.NetExecution == "" {
		d.NetExecution = LocalPredicted
	}
	if d.NetSecurity == "" {
		d.NetSecurity = ClientOrServer
	}
}

func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("ability: missing id")
	}
	if !d.Instancing.Valid() {
		return fmt.Errorf("ability %s: bad instancing %q", d.ID, d.Instancing)
	}
	if !d.NetExecution.Valid() {
		return fmt.Errorf("ability %s: bad net_execution %q", d.ID, d.NetExecution)
	}
	if !d.NetSecurity.Valid() {
		return fmt.Errorf("ability %s: bad net_security %q", d.ID, d.NetSecurity)
	}
	for i, tr := range d.Triggers {
		if !tr.Tag.IsValid() {
			return fmt.Errorf("ability %s: trigger %d has no tag", d.ID, i)
		}
		switch tr.Source {
		case TriggerGameplayEvent, TriggerOwnedTagAdded, TriggerOwnedTagPresent:
		default:
			return fmt.Errorf("ability %s: trigger %d bad source %q", d.ID, i, tr.Source)
		}
	}
	if d.Cost != nil {
		for i, m := range d.Cost.Modifiers {
			if m.Attribute == "" {
				return fmt.Errorf("ability %s: cost modifier %d has no attribute", d.ID, i)
			}
		}
	}
	return nil
}

func (d *Definition) CooldownTags() tags.Container {
	if d == nil || d.Cooldown == nil {
		return tags.Container{}
	}
	return d.Cooldown.GrantedTags
}

func (d *Definition) newBehavior() Behavior {
	if d.NewBehavior == nil {
		return Base{}
	}
	if b := d.NewBehavior(); b != nil {
		return b
	}
	return Base{}
}
