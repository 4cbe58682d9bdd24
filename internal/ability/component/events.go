package component

import (
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

type EventKind string

const (
	EventGranted   EventKind = "GRANTED"
	EventRemoved   EventKind = "REMOVED"
	EventActivated EventKind = "ACTIVATED"
	EventEnded     EventKind = "ENDED"
	EventCancelled EventKind = "CANCELLED"
	EventCommitted EventKind = "COMMITTED"
	EventFailed    EventKind = "FAILED"
	// EventRejected answers a remote activation request the server refused.
	EventRejected EventKind = "REJECTED"
	// EventClientEnd and EventClientCancel tell a remote controller that the
	// server ended its activation.
	EventClientEnd    EventKind = "CLIENT_END"
	EventClientCancel EventKind = "CLIENT_CANCEL"
	EventCueAdded     EventKind = "CUE_ADDED"
	EventCueRemoved   EventKind = "CUE_REMOVED"
	EventCueExecuted  EventKind = "CUE_EXECUTED"
)

// Event is one externally visible thing a component did.
type Event struct {
	Kind          EventKind       `json:"kind"`
	Actor         ability.ActorID `json:"actor"`
	Handle        ability.Handle  `json:"handle,omitempty"`
	AbilityID     string          `json:"ability,omitempty"`
	PredictionKey uint32          `json:"prediction_key,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
}

func (c *Component) specEvent(kind EventKind, h ability.Handle) Event {
	ev := Event{Kind: kind, Handle: h}
	if s := c.FindSpec(h); s != nil {
		ev.AbilityID = s.Def.ID
	}
	return ev
}

func (c *Component) notifyFailed(h ability.Handle, reasons tags.Container) {
	ev := c.specEvent(EventFailed, h)
	ev.Tags = reasons.Strings()
	c.emit(ev)
}

type eventListener struct {
	id    int
	tag   tags.Tag
	exact bool
	// filter is used when tag is empty. An empty filter matches every event.
	filter tags.Container
	fn     func(tags.Tag, *ability.EventData)
}

func (l eventListener) matches(t tags.Tag) bool {
	if l.tag.IsValid() {
		if l.exact {
			return l.tag == t
		}
		return t.MatchesTag(l.tag)
	}
	return l.filter.IsEmpty() || t.MatchesAny(l.filter)
}

// AddEventListener subscribes fn to gameplay events of tag. With exact
// false, child tags match too. It returns an id for RemoveEventListener.
func (c *Component) AddEventListener(tag tags.Tag, exact bool, fn func(tags.Tag, *ability.EventData)) int {
	c.nextListener++
	c.eventListeners = append(c.eventListeners, eventListener{id: c.nextListener, tag: tag, exact: exact, fn: fn})
	return c.nextListener
}

// AddEventContainerListener subscribes fn to events matching any tag of
// filter, or to every event if filter is empty.
func (c *Component) AddEventContainerListener(filter tags.Container, fn func(tags.Tag, *ability.EventData)) int {
	c.nextListener++
	c.eventListeners = append(c.eventListeners, eventListener{id: c.nextListener, filter: filter.Clone(), fn: fn})
	return c.nextListener
}

func (c *Component) RemoveEventListener(id int) {
	for i, l := range c.eventListeners {
		if l.id == id {
			c.eventListeners = append(c.eventListeners[:i], c.eventListeners[i+1:]...)
			return
		}
	}
}

// HandleGameplayEvent activates the abilities triggered by tag or one of its
// parents, then notifies listeners. It returns how many abilities activated.
func (c *Component) HandleGameplayEvent(tag tags.Tag, payload *ability.EventData) int {
	triggered := 0
	c.IncrementAbilityListLock()
	for cur := tag; cur.IsValid(); cur = cur.Parent() {
		for _, h := range append([]ability.Handle(nil), c.eventTriggers[cur]...) {
			spec := c.FindSpec(h)
			if spec == nil || !c.hasNetworkAuthorityToActivateTriggered(spec) {
				continue
			}
			if c.triggerFromGameplayEvent(spec, tag, payload) {
				triggered++
			}
		}
	}
	c.DecrementAbilityListLock()

	for _, l := range append([]eventListener(nil), c.eventListeners...) {
		if !l.matches(tag) {
			continue
		}
		ev := ability.EventData{EventTag: tag}
		if payload != nil {
			ev = *payload
			ev.EventTag = tag
		}
		l.fn(tag, &ev)
	}
	return triggered
}

func (c *Component) triggerFromGameplayEvent(spec *ability.Spec, tag tags.Tag, payload *ability.EventData) bool {
	ev := ability.EventData{EventTag: tag}
	if payload != nil {
		ev = *payload
		ev.EventTag = tag
	}
	return c.InternalTryActivate(spec.Handle, c.serverKey(spec), nil, &ev)
}
