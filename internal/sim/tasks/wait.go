package tasks

import (
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/component"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

// WaitDelay finishes after Seconds of world time.
type WaitDelay struct {
	base

	Seconds   float64
	Remaining float64
	OnFinish  func()
}

func NewWaitDelay(owner *ability.Instance, name string, seconds float64) *WaitDelay {
	t := &WaitDelay{Seconds: seconds, Remaining: seconds}
	t.init(t, KindWaitDelay, owner, name)
	return t
}

func (t *WaitDelay) Activate() bool {
	h, ok := t.start()
	if !ok {
		return false
	}
	h.AddTicker(t)
	t.cleanup = func() { h.RemoveTicker(t) }
	return true
}

func (t *WaitDelay) TickTask(dt float64) {
	if t.status != StatusActive {
		return
	}
	t.Remaining -= dt
	if t.Remaining > 1e-9 {
		return
	}
	t.Remaining = 0
	if t.OnFinish != nil && t.shouldBroadcast() {
		t.OnFinish()
	}
	t.EndTask()
}

// WaitEvent listens for gameplay events sent to the owning component.
type WaitEvent struct {
	base

	Tag       tags.Tag
	Exact     bool
	OnlyOnce  bool
	OnEvent   func(*ability.EventData)
	listener  int
	Delivered int
}

func NewWaitEvent(owner *ability.Instance, name string, tag tags.Tag, onlyOnce, exact bool) *WaitEvent {
	t := &WaitEvent{Tag: tag, OnlyOnce: onlyOnce, Exact: exact}
	t.init(t, KindWaitEvent, owner, name)
	return t
}

func (t *WaitEvent) Activate() bool {
	h, ok := t.start()
	if !ok {
		return false
	}
	t.listener = h.AddEventListener(t.Tag, t.Exact, t.received)
	t.cleanup = func() { h.RemoveEventListener(t.listener) }
	return true
}

func (t *WaitEvent) received(tag tags.Tag, payload *ability.EventData) {
	if !t.shouldBroadcast() {
		return
	}
	ev := ability.EventData{EventTag: tag}
	if payload != nil {
		ev = *payload
		ev.EventTag = tag
	}
	t.Delivered++
	if t.OnEvent != nil {
		t.OnEvent(&ev)
	}
	if t.OnlyOnce {
		t.EndTask()
	}
}

// WaitConfirmCancel waits for the controlling player to confirm or cancel.
// A locally controlled owner is answered through ConfirmTaskByInstanceName
// and CancelTaskByInstanceName; a remote one through replicated events.
type WaitConfirmCancel struct {
	base

	OnConfirm func()
	OnCancel  func()

	handle ability.Handle
	key    uint32
}

func NewWaitConfirmCancel(owner *ability.Instance, name string) *WaitConfirmCancel {
	t := &WaitConfirmCancel{}
	t.init(t, KindWaitConfirmCancel, owner, name)
	t.cancelled = func() {
		if t.OnCancel != nil {
			t.OnCancel()
		}
	}
	return t
}

func (t *WaitConfirmCancel) Activate() bool {
	h, ok := t.start()
	if !ok {
		return false
	}
	info := t.owner.ActorInfo()
	if info != nil && info.LocallyControlled {
		return true
	}

	t.handle = t.owner.SpecHandle()
	t.key = t.owner.ActivationInfo().PredictionKey
	t.cleanup = func() {
		h.ClearReplicatedDelegates(component.ReplicatedConfirm, t.handle, t.key)
		h.ClearReplicatedDelegates(component.ReplicatedCancel, t.handle, t.key)
	}
	if h.CallOrAddReplicatedDelegate(component.ReplicatedConfirm, t.handle, t.key, t.confirmed) {
		return true
	}
	if h.CallOrAddReplicatedDelegate(component.ReplicatedCancel, t.handle, t.key, t.ExternalCancel) {
		return true
	}
	t.setWaitingOnRemotePlayerData()
	return true
}

func (t *WaitConfirmCancel) confirmed() {
	if t.status != StatusActive {
		return
	}
	if t.OnConfirm != nil && t.shouldBroadcast() {
		t.OnConfirm()
	}
	t.EndTask()
}

// ExternalConfirm always finishes the wait: a confirmation is the answer.
func (t *WaitConfirmCancel) ExternalConfirm(bool) { t.confirmed() }

// WaitAvatar keeps an activation tied to its avatar. If the avatar is gone
// when the task starts, or disappears while it runs, the owning ability is
// cancelled. It ends by name or when the owner ends.
type WaitAvatar struct {
	base
}

func NewWaitAvatar(owner *ability.Instance, name string) *WaitAvatar {
	t := &WaitAvatar{}
	t.init(t, KindWaitAvatar, owner, name)
	return t
}

func (t *WaitAvatar) Activate() bool {
	h, ok := t.start()
	if !ok {
		return false
	}
	h.AddTicker(t)
	t.cleanup = func() { h.RemoveTicker(t) }
	t.setWaitingOnAvatar()
	return true
}

func (t *WaitAvatar) TickTask(float64) {
	if t.status != StatusActive {
		return
	}
	if _, ok := t.owner.ActorInfo().Avatar(); !ok {
		t.owner.NotifyTaskWaitingOnAvatar(t)
	}
}
