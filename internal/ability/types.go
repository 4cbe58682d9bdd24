package ability

import (
	"fmt"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

// Handle identifies a granted spec within one component. Zero is invalid.
type Handle uint32

func (h Handle) IsValid() bool { return h != 0 }

func (h Handle) String() string { return fmt.Sprintf("H%06d", uint32(h)) }

// ActorID is a lookup key into the actor registry. Abilities never hold
// actors directly.
type ActorID string

type InstancingPolicy string

const (
	NonInstanced          InstancingPolicy = "NON_INSTANCED"
	InstancedPerActor     InstancingPolicy = "INSTANCED_PER_ACTOR"
	InstancedPerExecution InstancingPolicy = "INSTANCED_PER_EXECUTION"
)

func (p InstancingPolicy) Valid() bool {
	switch p {
	case NonInstanced, InstancedPerActor, InstancedPerExecution:
		return true
	}
	return false
}

type NetExecutionPolicy string

const (
	LocalPredicted  NetExecutionPolicy = "LOCAL_PREDICTED"
	LocalOnly       NetExecutionPolicy = "LOCAL_ONLY"
	ServerInitiated NetExecutionPolicy = "SERVER_INITIATED"
	ServerOnly      NetExecutionPolicy = "SERVER_ONLY"
)

func (p NetExecutionPolicy) Valid() bool {
	switch p {
	case LocalPredicted, LocalOnly, ServerInitiated, ServerOnly:
		return true
	}
	return false
}

type NetSecurityPolicy string

const (
	ClientOrServer        NetSecurityPolicy = "CLIENT_OR_SERVER"
	ServerOnlyExecution   NetSecurityPolicy = "SERVER_ONLY_EXECUTION"
	ServerOnlyTermination NetSecurityPolicy = "SERVER_ONLY_TERMINATION"
	SecurityServerOnly    NetSecurityPolicy = "SERVER_ONLY"
)

func (p NetSecurityPolicy) Valid() bool {
	switch p {
	case ClientOrServer, ServerOnlyExecution, ServerOnlyTermination, SecurityServerOnly:
		return true
	}
	return false
}

type NetRole string

const (
	RoleNone            NetRole = "NONE"
	RoleSimulatedProxy  NetRole = "SIMULATED_PROXY"
	RoleAutonomousProxy NetRole = "AUTONOMOUS_PROXY"
	RoleAuthority       NetRole = "AUTHORITY"
)

type ActivationMode string

const (
	ModeAuthority    ActivationMode = "AUTHORITY"
	ModeNonAuthority ActivationMode = "NON_AUTHORITY"
	ModePredicting   ActivationMode = "PREDICTING"
	ModeConfirmed    ActivationMode = "CONFIRMED"
	ModeRejected     ActivationMode = "REJECTED"
)

// TagReplicationPolicy selects which owned-tag tier a mutation goes through.
type TagReplicationPolicy int

const (
	// TagsLocal only touches the loose owned-tag counts.
	TagsLocal TagReplicationPolicy = iota
	// TagsMinimal also records the tags for minimal replication (the
	// ability runs on both sides, so remote peers only need the summary).
	TagsMinimal
	// TagsReplicated also records the tags as fully replicated loose tags.
	TagsReplicated
)

func (p TagReplicationPolicy) String() string {
	switch p {
	case TagsMinimal:
		return "MINIMAL"
	case TagsReplicated:
		return "REPLICATED"
	}
	return "LOCAL"
}

// ActivationInfo describes who initiated one activation.
type ActivationInfo struct {
	Mode                      ActivationMode `json:"mode"`
	PredictionKey             uint32         `json:"prediction_key,omitempty"`
	CanBeEndedByOtherInstance bool           `json:"can_be_ended_by_other_instance,omitempty"`
}

func (a *ActivationInfo) SetActivationConfirmed() {
	a.Mode = ModeConfirmed
}

// ActorInfo carries the ids of the actors an activation runs against plus
// the directory that resolves them. A resolution failure means the actor is
// gone.
type ActorInfo struct {
	OwnerID           ActorID
	AvatarID          ActorID
	LocallyControlled bool

	Dir Directory
}

func (i *ActorInfo) Component() (Owner, bool) {
	if i == nil || i.Dir == nil || i.OwnerID == "" {
		return nil, false
	}
	return i.Dir.Component(i.OwnerID)
}

func (i *ActorInfo) Avatar() (Avatar, bool) {
	if i == nil || i.Dir == nil || i.AvatarID == "" {
		return nil, false
	}
	return i.Dir.Avatar(i.AvatarID)
}

func (i *ActorInfo) IsNetAuthority() bool {
	av, ok := i.Avatar()
	return ok && av.LocalRole() == RoleAuthority
}

// EventData is the payload of a gameplay event.
type EventData struct {
	EventTag       tags.Tag       `json:"event_tag"`
	InstigatorID   ActorID        `json:"instigator_id,omitempty"`
	TargetID       ActorID        `json:"target_id,omitempty"`
	InstigatorTags tags.Container `json:"instigator_tags,omitempty"`
	TargetTags     tags.Container `json:"target_tags,omitempty"`
	Magnitude      float64        `json:"magnitude,omitempty"`
}

// EndedData is delivered once to ended-with-data listeners.
type EndedData struct {
	Instance     *Instance
	Handle       Handle
	ReplicateEnd bool
	WasCancelled bool
}
