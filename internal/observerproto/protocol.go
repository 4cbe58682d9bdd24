package observerproto

import "github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"

// Version is the observer protocol version (separate from the actor WS protocol).
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeTick      = "TICK"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Actors limits events and state to these actors. Empty means all.
	Actors []string `json:"actors,omitempty"`
	// Kinds limits events to these kinds (ACTIVATED, CUE_ADDED, ...).
	Kinds []string `json:"kinds,omitempty"`
	// StateEvery sends actor state on every Nth tick; 0 means every tick.
	StateEvery int `json:"state_every,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string                  `json:"protocol_version"`
	WorldID         string                  `json:"world_id"`
	Tick            uint64                  `json:"tick"`
	TickRateHz      int                     `json:"tick_rate_hz"`
	Catalogs        protocol.CatalogDigests `json:"catalogs"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	StateDigest     string `json:"state_digest"`

	Joins  []JoinInfo            `json:"joins,omitempty"`
	Leaves []string              `json:"leaves,omitempty"`
	Events []protocol.Event      `json:"events,omitempty"`
	Actors []protocol.ActorState `json:"actors,omitempty"`
}

type JoinInfo struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name"`
}
