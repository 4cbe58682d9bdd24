package ability

import "github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"

// Behavior is the ability logic plugged into an instance.
//
// Activate must eventually commit and end the ability (or leave it active on
// purpose, e.g. passives that only grant tags). OnEnd runs inside End before
// any cleanup and may call End again; the second call is rejected.
type Behavior interface {
	Activate(a *Instance, h Handle, info *ActorInfo, act ActivationInfo, trigger *EventData)
	OnEnd(a *Instance, wasCancelled bool)
	// CanActivate is the extra predicate of the activation gate. Tags
	// appended to relevant are reported after the custom fail marker.
	CanActivate(a *Instance, h Handle, info *ActorInfo, relevant *tags.Container) bool
	ShouldRespondToEvent(a *Instance, info *ActorInfo, payload *EventData) bool
}

// CommitHook is implemented by behaviors that react to a successful commit.
type CommitHook interface {
	OnCommit(a *Instance)
}

// Base is the native default: activation does nothing, every predicate
// passes.
type Base struct{}

func (Base) Activate(*Instance, Handle, *ActorInfo, ActivationInfo, *EventData) {}
func (Base) OnEnd(*Instance, bool) {}
func (Base) CanActivate(*Instance, Handle, *ActorInfo, *tags.Container) bool { return true }
func (Base) ShouldRespondToEvent(*Instance, *ActorInfo, *EventData) bool { return true }

// Func adapts plain functions to Behavior. Nil fields fall back to Base.
type Func struct {
	OnActivate    func(a *Instance, h Handle, info *ActorInfo, act ActivationInfo, trigger *EventData)
	OnEndFn       func(a *Instance, wasCancelled bool)
	CanActivateFn func(a *Instance, h Handle, info *ActorInfo, relevant *tags.Container) bool
	RespondFn     func(a *Instance, info *ActorInfo, payload *EventData) bool
}

func (f Func) Activate(a *Instance, h Handle, info *ActorInfo, act ActivationInfo, trigger *EventData) {
	if f.OnActivate != nil {
		f.OnActivate(a, h, info, act, trigger)
	}
}

func (f Func) OnEnd(a *Instance, wasCancelled bool) {
	if f.OnEndFn != nil {
		f.OnEndFn(a, wasCancelled)
	}
}

func (f Func) CanActivate(a *Instance, h Handle, info *ActorInfo, relevant *tags.Container) bool {
	if f.CanActivateFn != nil {
		return f.CanActivateFn(a, h, info, relevant)
	}
	return true
}

func (f Func) ShouldRespondToEvent(a *Instance, info *ActorInfo, payload *EventData) bool {
	if f.RespondFn != nil {
		return f.RespondFn(a, info, payload)
	}
	return true
}
