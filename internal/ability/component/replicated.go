package component

import "github.com/VMF-HIBIKI/GAS-Learning/internal/ability"

// ReplicatedEvent is a generic signal a remote controller sends to one
// activation.
type ReplicatedEvent string

const (
	ReplicatedConfirm       ReplicatedEvent = "GENERIC_CONFIRM"
	ReplicatedCancel        ReplicatedEvent = "GENERIC_CANCEL"
	ReplicatedInputPressed  ReplicatedEvent = "INPUT_PRESSED"
	ReplicatedInputReleased ReplicatedEvent = "INPUT_RELEASED"
)

type dataKey struct {
	handle ability.Handle
	key    uint32
}

type replicatedData struct {
	fired     map[ReplicatedEvent]bool
	delegates map[ReplicatedEvent][]func()
}

func (c *Component) data(h ability.Handle, key uint32) *replicatedData {
	k := dataKey{handle: h, key: key}
	d, ok := c.replicatedData[k]
	if !ok {
		d = &replicatedData{fired: map[ReplicatedEvent]bool{}, delegates: map[ReplicatedEvent][]func(){}}
		c.replicatedData[k] = d
	}
	return d
}

// InvokeReplicatedEvent records ev for the activation and runs the callbacks
// waiting on it. It reports whether any callback ran.
func (c *Component) InvokeReplicatedEvent(ev ReplicatedEvent, h ability.Handle, key uint32) bool {
	d := c.data(h, key)
	fns := d.delegates[ev]
	if len(fns) == 0 {
		d.fired[ev] = true
		return false
	}
	delete(d.delegates, ev)
	for _, fn := range fns {
		fn()
	}
	return true
}

// CallOrAddReplicatedDelegate runs fn right away if ev already arrived for
// the activation, consuming it; otherwise fn waits for the next
// InvokeReplicatedEvent. It reports whether fn ran.
func (c *Component) CallOrAddReplicatedDelegate(ev ReplicatedEvent, h ability.Handle, key uint32, fn func()) bool {
	d := c.data(h, key)
	if d.fired[ev] {
		delete(d.fired, ev)
		fn()
		return true
	}
	d.delegates[ev] = append(d.delegates[ev], fn)
	return false
}

// ClearReplicatedDelegates drops the callbacks waiting on ev.
func (c *Component) ClearReplicatedDelegates(ev ReplicatedEvent, h ability.Handle, key uint32) {
	if d, ok := c.replicatedData[dataKey{handle: h, key: key}]; ok {
		delete(d.delegates, ev)
	}
}

// ClearReplicatedDataCache forgets everything received for one activation.
func (c *Component) ClearReplicatedDataCache(h ability.Handle, act ability.ActivationInfo) {
	delete(c.replicatedData, dataKey{handle: h, key: act.PredictionKey})
}
