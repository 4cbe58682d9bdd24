package world

import (
	"fmt"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/component"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/persistence/snapshot"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/catalogs"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/tuning"
)

type JoinRequest struct {
	Name string
	// LocallyControlled makes the server treat the actor as driven from
	// this machine. Transports only set it for local connections.
	LocallyControlled bool
	// ResumeToken reattaches to an actor that is still in the world.
	ResumeToken string
	Out         chan []byte
	Resp        chan JoinResponse
}

type JoinResponse struct {
	Welcome  protocol.WelcomeMsg
	Catalogs []protocol.CatalogMsg
	Err      string
}

type CommandEnvelope struct {
	ActorID string
	Act     protocol.ActMsg
}

type RecordedJoin struct {
	ActorID           string `json:"actor_id"`
	Name              string `json:"name"`
	LocallyControlled bool   `json:"locally_controlled,omitempty"`
}

// Actor is one joined participant and its ability component.
type Actor struct {
	ID                string
	Name              string
	LocallyControlled bool
	ResumeToken       string
	Comp              *component.Component

	// Per-tick counters for rate limiting.
	cmdsThisTick   int
	eventsThisTick int
}

// World is a single-threaded authoritative simulation of ability
// components. All state must be accessed only from the world loop
// goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	log      *zap.Logger

	// abilityCfg is shared by every component; tuning reloads overwrite it
	// in place at a tick boundary.
	abilityCfg *ability.Config

	tick atomic.Uint64

	reg     *component.Registry
	actors  map[string]*Actor
	clients map[string]*clientState

	// Events emitted by components during the current tick.
	pending     []protocol.Event
	eventCursor uint64

	acks map[ackKey]ackEntry

	inbox    chan CommandEnvelope
	join     chan JoinRequest
	leave    chan string
	admin    chan adminSnapshotReq
	stateReq chan stateReq
	config   chan tuning.Tuning
	stop     chan struct{}

	observers     map[string]*observer
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	observerSub   chan ObserverSubscribeRequest

	nextActorNum atomic.Uint64

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	// appliedTuning is logged with the tick it took effect on.
	appliedTuning *tuning.Tuning

	metrics atomic.Value
	dropped uint64
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick     uint64            `json:"tick"`
	Joins    []RecordedJoin    `json:"joins,omitempty"`
	Leaves   []string          `json:"leaves,omitempty"`
	Commands []CommandEnvelope `json:"commands,omitempty"`
	// Tuning is set on the tick a reloaded tuning took effect.
	Tuning *tuning.Tuning `json:"tuning,omitempty"`
	Digest string         `json:"digest"`
}

// AuditEntry records one ability lifecycle event.
type AuditEntry struct {
	Tick          uint64   `json:"tick"`
	Actor         string   `json:"actor"`
	Action        string   `json:"action"` // e.g. "ACTIVATED"
	Handle        uint32   `json:"handle,omitempty"`
	Ability       string   `json:"ability,omitempty"`
	PredictionKey uint32   `json:"prediction_key,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

type clientState struct {
	Out chan []byte
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, log *zap.Logger) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	cfg.applyDefaults()
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	for _, s := range cfg.Tuning.Starter.Abilities {
		if _, ok := cats.Lookup(s.ID); !ok {
			return nil, fmt.Errorf("world: starter ability %q not in catalog", s.ID)
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	abilityCfg := cfg.Tuning.Ability

	w := &World{
		cfg:        cfg,
		catalogs:   cats,
		log:        log.With(zap.String("world", cfg.ID)),
		abilityCfg: &abilityCfg,
		reg:        component.NewRegistry(),
		actors:     map[string]*Actor{},
		clients:    map[string]*clientState{},
		acks:       map[ackKey]ackEntry{},
		inbox:      make(chan CommandEnvelope, 1024),
		join:       make(chan JoinRequest, 64),
		leave:      make(chan string, 64),
		admin:      make(chan adminSnapshotReq, 16),
		stateReq:   make(chan stateReq, 16),
		config:     make(chan tuning.Tuning, 4),
		stop:       make(chan struct{}),

		observers:     map[string]*observer{},
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 16),
	}
	return w, nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.Tuning.TickRateHz
}

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// TuningDigest identifies the active tuning. Only safe while the world is
// stopped or from the loop goroutine.
func (w *World) TuningDigest() string { return w.tuningDigest() }

func (w *World) Inbox() chan<- CommandEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest      { return w.join }
func (w *World) Leave() chan<- string          { return w.leave }

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

// UpdateTuning hands a reloaded tuning to the loop. It is applied at the
// next tick boundary. A full queue drops the update.
func (w *World) UpdateTuning(t tuning.Tuning) bool {
	select {
	case w.config <- t:
		return true
	default:
		return false
	}
}

// Component returns the ability component of a joined actor. Only safe from
// the loop goroutine or while the world is stopped.
func (w *World) Component(actorID string) *component.Component {
	if a := w.actors[actorID]; a != nil {
		return a.Comp
	}
	return nil
}

func (w *World) sortedActorIDs() []string {
	ids := make([]string, 0, len(w.actors))
	for id := range w.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
