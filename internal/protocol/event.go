package protocol

// Lifecycle event kinds carried by EVENT.
const (
	EventGranted      = "GRANTED"
	EventRemoved      = "REMOVED"
	EventActivated    = "ACTIVATED"
	EventEnded        = "ENDED"
	EventCancelled    = "CANCELLED"
	EventCommitted    = "COMMITTED"
	EventFailed       = "FAILED"
	EventRejected     = "REJECTED"
	EventClientEnd    = "CLIENT_END"
	EventClientCancel = "CLIENT_CANCEL"
	EventCueAdded     = "CUE_ADDED"
	EventCueRemoved   = "CUE_REMOVED"
	EventCueExecuted  = "CUE_EXECUTED"
)

// Event is one thing an ability component did during a tick.
type Event struct {
	Cursor        uint64   `json:"cursor"`
	Tick          uint64   `json:"tick"`
	Kind          string   `json:"kind"`
	ActorID       string   `json:"actor_id"`
	Handle        uint32   `json:"handle,omitempty"`
	Ability       string   `json:"ability,omitempty"`
	PredictionKey uint32   `json:"prediction_key,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// EVENT (server -> client): the events of one tick, in the order they
// happened. Cursors increase by one per event across the whole world.
type EventMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	WorldID         string  `json:"world_id,omitempty"`
	Events          []Event `json:"events"`
	NextCursor      uint64  `json:"next_cursor"`
}
