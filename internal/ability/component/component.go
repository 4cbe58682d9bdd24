// Package component is the actor-level ability system: granted specs, owned
// tags, effects and the bookkeeping abilities report back to.
//
// A Component is owned by the world loop goroutine. Nothing here is safe for
// concurrent use.
package component

import (
	"sort"

	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/effects"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

// Ticker is a task that advances with simulation time.
type Ticker interface {
	TickTask(dt float64)
}

type Options struct {
	ID       ability.ActorID
	AvatarID ability.ActorID
	// Role is the owner's network role. Zero means authority.
	Role              ability.NetRole
	LocallyControlled bool

	Config *ability.Config
	Logger *zap.Logger

	// OnEvent receives lifecycle and cue events in the order they happen.
	OnEvent func(Event)
}

type pendingAdd struct {
	spec         *ability.Spec
	activateOnce bool
	event        *ability.EventData
}

type Component struct {
	id   ability.ActorID
	role ability.NetRole
	info *ability.ActorInfo
	cfg  *ability.Config
	log  *zap.Logger

	onEvent func(Event)

	specs      []*ability.Spec
	nextHandle ability.Handle
	nextKey    uint32

	listLock        int
	pendingAdds     []pendingAdd
	pendingRemoves  []ability.Handle
	pendingClearAll bool

	owned      *tags.CountContainer
	minimal    *tags.CountContainer
	replicated *tags.CountContainer
	blocked    *tags.CountContainer

	blockedInputs map[int]int
	inhibited     bool
	destroying    bool

	effects *effects.Container

	eventTriggers    map[tags.Tag][]ability.Handle
	ownedTagTriggers map[tags.Tag][]ability.Handle

	eventListeners []eventListener
	nextListener   int

	replicatedData map[dataKey]*replicatedData

	cues map[tags.Tag]int

	nextTick []func()
	tickers  []Ticker
}

func New(dir ability.Directory, opts Options) *Component {
	cfg := opts.Config
	if cfg == nil {
		c := ability.DefaultConfig()
		cfg = &c
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	avatar := opts.AvatarID
	if avatar == "" {
		avatar = opts.ID
	}
	role := opts.Role
	if role == "" {
		role = ability.RoleAuthority
	}
	c := &Component{
		id:   opts.ID,
		role: role,
		info: &ability.ActorInfo{
			OwnerID:           opts.ID,
			AvatarID:          avatar,
			LocallyControlled: opts.LocallyControlled,
			Dir:               dir,
		},
		cfg:              cfg,
		log:              log.With(zap.String("actor", string(opts.ID))),
		onEvent:          opts.OnEvent,
		owned:            tags.NewCountContainer(),
		minimal:          tags.NewCountContainer(),
		replicated:       tags.NewCountContainer(),
		blocked:          tags.NewCountContainer(),
		blockedInputs:    map[int]int{},
		eventTriggers:    map[tags.Tag][]ability.Handle{},
		ownedTagTriggers: map[tags.Tag][]ability.Handle{},
		replicatedData:   map[dataKey]*replicatedData{},
		cues:             map[tags.Tag]int{},
	}
	c.effects = effects.New(c, c.log)
	c.owned.OnChange = c.monitoredTagChanged
	return c
}

var _ ability.Owner = (*Component)(nil)

func (c *Component) ID() ability.ActorID { return c.id }
func (c *Component) ActorInfo() *ability.ActorInfo { return c.info }
func (c *Component) Config() *ability.Config { return c.cfg }
func (c *Component) EffectContainer() *effects.Container { return c.effects }

func (c *Component) Effects() ability.Effects { return c.effects }

func (c *Component) emit(ev Event) {
	ev.Actor = c.id
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

// avatarRole is the role abilities are gated on. A missing avatar has none.
func (c *Component) avatarRole() ability.NetRole {
	av, ok := c.info.Avatar()
	if !ok {
		return ability.RoleNone
	}
	return av.LocalRole()
}

func (c *Component) isAuthority() bool { return c.role == ability.RoleAuthority }

func (c *Component) newPredictionKey() uint32 {
	c.nextKey++
	return c.nextKey
}

// FindSpec returns the granted spec for h. Pending adds are not visible.
func (c *Component) FindSpec(h ability.Handle) *ability.Spec {
	if !h.IsValid() {
		return nil
	}
	for _, s := range c.specs {
		if s.Handle == h {
			return s
		}
	}
	return nil
}

// FindSpecByAbility returns the first spec granting the ability id.
func (c *Component) FindSpecByAbility(id string) *ability.Spec {
	for _, s := range c.specs {
		if s.Def.ID == id {
			return s
		}
	}
	return nil
}

// Specs returns the granted specs in grant order.
func (c *Component) Specs() []*ability.Spec {
	return append([]*ability.Spec(nil), c.specs...)
}

// ActivatableSpecsByAllMatchingTags returns the specs whose asset tags have
// every tag of t.
func (c *Component) ActivatableSpecsByAllMatchingTags(t tags.Container) []*ability.Spec {
	var out []*ability.Spec
	for _, s := range c.specs {
		if s.Def.AssetTags.HasAll(t) {
			out = append(out, s)
		}
	}
	return out
}

// ScheduleNextTick queues fn for the start of the next Tick.
func (c *Component) ScheduleNextTick(fn func()) { c.nextTick = append(c.nextTick, fn) }

func (c *Component) AddTicker(t Ticker) { c.tickers = append(c.tickers, t) }

func (c *Component) RemoveTicker(t Ticker) {
	for i, x := range c.tickers {
		if x == t {
			c.tickers = append(c.tickers[:i], c.tickers[i+1:]...)
			return
		}
	}
}

// Tick advances effects, then runs callbacks queued for this tick, then
// ticks tasks.
func (c *Component) Tick(dt float64) {
	c.effects.Advance(dt)

	fns := c.nextTick
	c.nextTick = nil
	for _, fn := range fns {
		fn()
	}

	for _, t := range append([]Ticker(nil), c.tickers...) {
		t.TickTask(dt)
	}
}

// SetAttribute sets an attribute's base and current value.
func (c *Component) SetAttribute(name string, v float64) { c.effects.SetAttribute(name, v) }

func (c *Component) Attribute(name string) (float64, bool) { return c.effects.Attribute(name) }

// Registry maps actor ids to their components and avatars.
type Registry struct {
	comps   map[ability.ActorID]*Component
	avatars map[ability.ActorID]*Avatar
}

func NewRegistry() *Registry {
	return &Registry{comps: map[ability.ActorID]*Component{}, avatars: map[ability.ActorID]*Avatar{}}
}

var _ ability.Directory = (*Registry)(nil)

func (r *Registry) Component(id ability.ActorID) (ability.Owner, bool) {
	c, ok := r.comps[id]
	if !ok {
		return nil, false
	}
	return c, true
}

func (r *Registry) Avatar(id ability.ActorID) (ability.Avatar, bool) {
	a, ok := r.avatars[id]
	if !ok {
		return nil, false
	}
	return a, true
}

func (r *Registry) Add(c *Component) { r.comps[c.id] = c }

func (r *Registry) AddAvatar(a *Avatar) { r.avatars[a.ID] = a }

func (r *Registry) RemoveAvatar(id ability.ActorID) { delete(r.avatars, id) }

func (r *Registry) Remove(id ability.ActorID) {
	delete(r.comps, id)
	delete(r.avatars, id)
}

func (r *Registry) Get(id ability.ActorID) *Component { return r.comps[id] }

// IDs returns the registered component ids in sorted order.
func (r *Registry) IDs() []ability.ActorID {
	out := make([]ability.ActorID, 0, len(r.comps))
	for id := range r.comps {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Avatar is the in-world body an ability acts through.
type Avatar struct {
	ID   ability.ActorID
	Role ability.NetRole
}

func (a *Avatar) LocalRole() ability.NetRole { return a.Role }
