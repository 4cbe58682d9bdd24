package ability

import (
	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

type State string

const (
	StateInactive   State = "INACTIVE"
	StateActivating State = "ACTIVATING"
	StateActive     State = "ACTIVE"
	StateEnding     State = "ENDING"
)

// Instance is one execution context of an ability. A template instance is
// shared by every activation of a NonInstanced ability and never tracks
// per-activation state.
//
// Instances are not safe for concurrent use. All calls happen on the world
// loop goroutine.
type Instance struct {
	def          *Definition
	cfg          *Config
	log          *zap.Logger
	behavior     Behavior
	instantiated bool

	specHandle Handle
	info       *ActorInfo
	activation ActivationInfo
	eventData  *EventData

	active      bool
	activating  bool
	ending      bool
	cancelable  bool
	blocking    bool
	remoteEnded bool

	scopeLock int
	waiting   []func()

	tasks       []Task
	endNames    []string
	cancelNames []string
	// latentGen invalidates callbacks scheduled by this instance.
	latentGen uint64

	trackedCues []tags.Tag

	onEnded         []func(*Instance)
	onEndedWithData []func(EndedData)
	onCancelled     []func()
	onConfirm       []func(*Instance)
}

// NewTemplate builds the shared representation of def.
func NewTemplate(def *Definition, cfg *Config, log *zap.Logger) *Instance {
	return newInstance(def, cfg, log, false)
}

// NewInstance builds a real instance of def.
func NewInstance(def *Definition, cfg *Config, log *zap.Logger) *Instance {
	return newInstance(def, cfg, log, true)
}

func newInstance(def *Definition, cfg *Config, log *zap.Logger, instantiated bool) *Instance {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Instance{
		def:          def,
		cfg:          cfg,
		log:          log.With(zap.String("ability", def.ID)),
		behavior:     def.newBehavior(),
		instantiated: instantiated,
	}
}

func (a *Instance) Def() *Definition { return a.def }
func (a *Instance) Config() *Config { return a.cfg }
func (a *Instance) Logger() *zap.Logger { return a.log }
func (a *Instance) Behavior() Behavior { return a.behavior }
func (a *Instance) IsInstantiated() bool { return a.instantiated }
func (a *Instance) SpecHandle() Handle { return a.specHandle }
func (a *Instance) ActorInfo() *ActorInfo { return a.info }
func (a *Instance) RemoteEnded() bool { return a.remoteEnded }

func (a *Instance) ActivationInfo() ActivationInfo { return a.activation }

func (a *Instance) InstancingPolicy() InstancingPolicy { return a.def.Instancing }

func (a *Instance) IsActive() bool { return a.active }

func (a *Instance) IsEnding() bool { return a.ending }

// EventData returns the payload of the triggering event, if any.
func (a *Instance) EventData() *EventData { return a.eventData }

func (a *Instance) State() State {
	switch {
	case a.ending:
		return StateEnding
	case a.active && a.activating:
		return StateActivating
	case a.active:
		return StateActive
	}
	return StateInactive
}

// CanBeCanceled is always true for NonInstanced abilities.
func (a *Instance) CanBeCanceled() bool {
	if a.def.Instancing == NonInstanced {
		return true
	}
	return a.cancelable
}

func (a *Instance) IsBlockingOtherAbilities() bool {
	if a.def.Instancing == NonInstanced {
		return true
	}
	return a.blocking
}

// Owner resolves the component of the current actor info.
func (a *Instance) Owner() (Owner, bool) {
	return a.info.Component()
}

// CurrentSpec resolves the spec of the current activation.
func (a *Instance) CurrentSpec() *Spec {
	owner, ok := a.Owner()
	if !ok {
		return nil
	}
	return owner.FindSpec(a.specHandle)
}

// Level returns the ability level of h, or 1 when it cannot be resolved.
func (a *Instance) Level(h Handle, info *ActorInfo) float64 {
	owner, ok := info.Component()
	if !ok {
		return 1
	}
	spec := owner.FindSpec(h)
	if spec == nil {
		return 1
	}
	return float64(spec.Level)
}

func (a *Instance) effectContext(h Handle, info *ActorInfo, spec *Spec) EffectContext {
	ctx := EffectContext{Handle: h, AbilityID: a.def.ID}
	if info != nil {
		ctx.InstigatorID = info.OwnerID
	}
	if spec != nil {
		ctx.SetByCaller = spec.SetByCaller
	}
	return ctx
}

func (a *Instance) setCurrentInfo(h Handle, info *ActorInfo, act ActivationInfo) {
	if !a.instantiated {
		return
	}
	a.specHandle = h
	a.info = info
	a.activation = act
}

// OnEnded registers a listener for the next end. Listeners are cleared after
// they fire.
func (a *Instance) OnEnded(fn func(*Instance)) { a.onEnded = append(a.onEnded, fn) }

func (a *Instance) OnEndedWithData(fn func(EndedData)) {
	a.onEndedWithData = append(a.onEndedWithData, fn)
}

func (a *Instance) OnCancelled(fn func()) { a.onCancelled = append(a.onCancelled, fn) }

func (a *Instance) OnConfirm(fn func(*Instance)) { a.onConfirm = append(a.onConfirm, fn) }

// ConfirmActivateSucceed marks a predicted activation as confirmed and tells
// confirm listeners. Listeners are cleared afterwards.
func (a *Instance) ConfirmActivateSucceed() {
	if !a.instantiated {
		return
	}
	if a.activation.Mode == ModePredicting {
		a.activation.SetActivationConfirmed()
	}
	fns := a.onConfirm
	a.onConfirm = nil
	for _, fn := range fns {
		fn(a)
	}
}

func (a *Instance) usage(msg string, fields ...zap.Field) {
	a.log.Warn(msg, fields...)
}
