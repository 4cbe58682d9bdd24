package protocol

// STATE (server -> client): the ability state of every actor the client
// can see, sent after each tick that changed something.
type StateMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	WorldID         string       `json:"world_id,omitempty"`
	StateDigest     string       `json:"state_digest,omitempty"`
	Actors          []ActorState `json:"actors"`
}

type ActorState struct {
	ActorID    string             `json:"actor_id"`
	OwnedTags  []string           `json:"owned_tags"`
	Blocked    []string           `json:"blocked_tags,omitempty"`
	Attributes map[string]float64 `json:"attributes"`
	Abilities  []AbilityState     `json:"abilities"`
	Cues       []string           `json:"cues,omitempty"`
	Inhibited  bool               `json:"inhibited,omitempty"`
}

type AbilityState struct {
	Handle            uint32  `json:"handle"`
	Ability           string  `json:"ability"`
	Level             int     `json:"level"`
	InputID           int     `json:"input_id"`
	ActiveCount       int     `json:"active_count"`
	State             string  `json:"state"` // INACTIVE|ACTIVATING|ACTIVE|ENDING
	CooldownRemaining float64 `json:"cooldown_remaining,omitempty"`
}
