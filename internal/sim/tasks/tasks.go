package tasks

import (
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/component"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
)

type Kind string

const (
	KindWaitDelay         Kind = "WAIT_DELAY"
	KindWaitEvent         Kind = "WAIT_EVENT"
	KindWaitConfirmCancel Kind = "WAIT_CONFIRM_CANCEL"
	KindWaitAvatar        Kind = "WAIT_AVATAR"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusEnded   Status = "ENDED"
)

// Host is the part of the owning component tasks hook into.
// *component.Component satisfies it.
type Host interface {
	AddTicker(t component.Ticker)
	RemoveTicker(t component.Ticker)
	AddEventListener(tag tags.Tag, exact bool, fn func(tags.Tag, *ability.EventData)) int
	RemoveEventListener(id int)
	CallOrAddReplicatedDelegate(ev component.ReplicatedEvent, h ability.Handle, key uint32, fn func()) bool
	ClearReplicatedDelegates(ev component.ReplicatedEvent, h ability.Handle, key uint32)
}

// base carries what every task shares: the owning instance, registration
// with it and the end bookkeeping.
type base struct {
	kind   Kind
	name   string
	owner  *ability.Instance
	self   ability.Task
	status Status

	waitingRemote bool
	waitingAvatar bool

	// cleanup releases kind specific hooks. It runs once.
	cleanup func()
	// cancelled runs on ExternalCancel before the task ends.
	cancelled func()
}

func (b *base) init(self ability.Task, kind Kind, owner *ability.Instance, name string) {
	b.self = self
	b.kind = kind
	b.owner = owner
	b.name = name
	b.status = StatusPending
}

func (b *base) host() (Host, bool) {
	o, ok := b.owner.Owner()
	if !ok {
		return nil, false
	}
	h, ok := o.(Host)
	return h, ok
}

// start registers the task with its owner. It fails when the owner is not
// active or the task already ran.
func (b *base) start() (Host, bool) {
	if b.status != StatusPending || !b.owner.IsActive() {
		return nil, false
	}
	h, ok := b.host()
	if !ok {
		return nil, false
	}
	b.status = StatusActive
	b.owner.RegisterTask(b.self)
	return h, true
}

func (b *base) Kind() Kind                        { return b.kind }
func (b *base) Status() Status                    { return b.status }
func (b *base) InstanceName() string              { return b.name }
func (b *base) IsWaitingOnRemotePlayerData() bool { return b.waitingRemote }
func (b *base) IsWaitingOnAvatar() bool           { return b.waitingAvatar }

// shouldBroadcast reports whether callbacks may still run. Once the owner
// has ended nothing is delivered.
func (b *base) shouldBroadcast() bool {
	return b.status == StatusActive && b.owner.IsActive()
}

func (b *base) EndTask() {
	if b.status == StatusEnded {
		return
	}
	wasActive := b.status == StatusActive
	b.status = StatusEnded
	b.waitingRemote = false
	b.waitingAvatar = false
	if b.cleanup != nil {
		b.cleanup()
		b.cleanup = nil
	}
	if wasActive {
		b.owner.DeregisterTask(b.self)
	}
}

func (b *base) OwnerEnded() { b.EndTask() }

func (b *base) ExternalCancel() {
	if b.status != StatusActive {
		return
	}
	if b.cancelled != nil && b.shouldBroadcast() {
		b.cancelled()
	}
	b.EndTask()
}

func (b *base) ExternalConfirm(endTask bool) {
	if endTask {
		b.EndTask()
	}
}

func (b *base) setWaitingOnRemotePlayerData() {
	b.waitingRemote = true
	b.owner.NotifyTaskWaitingOnPlayerData(b.self)
}

func (b *base) setWaitingOnAvatar() {
	b.waitingAvatar = true
	b.owner.NotifyTaskWaitingOnAvatar(b.self)
}
