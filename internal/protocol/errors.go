package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// World routing/state.
	ErrWorldBusy = "E_WORLD_BUSY"

	// Command layer.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrUnknownAbility = "E_UNKNOWN_ABILITY"
	ErrNoPermission   = "E_NO_PERMISSION"
	ErrRateLimit      = "E_RATE_LIMIT"
	ErrRejected       = "E_REJECTED"
	ErrStale          = "E_STALE"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrWorldBusy:       {},
	ErrBadRequest:      {},
	ErrUnknownAbility:  {},
	ErrNoPermission:    {},
	ErrRateLimit:       {},
	ErrRejected:        {},
	ErrStale:           {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
