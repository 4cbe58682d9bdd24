package world

import "github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"

const actDedupeTTLTicks = uint64(3000)

type ackKey struct {
	ActorID string
	CmdID   string
}

type ackEntry struct {
	Ack         protocol.AckMsg
	ExpiresTick uint64
}

// rememberAck returns the ACK already sent for (actor, command id), or
// stores proposed if the id is unseen. Clients that resend a command after
// a reconnect get the original answer instead of a second activation.
func (w *World) rememberAck(actorID, cmdID string, nowTick uint64, proposed protocol.AckMsg) (protocol.AckMsg, bool) {
	key := ackKey{ActorID: actorID, CmdID: cmdID}
	if e, ok := w.acks[key]; ok && nowTick < e.ExpiresTick {
		return e.Ack, true
	}
	w.acks[key] = ackEntry{Ack: proposed, ExpiresTick: nowTick + actDedupeTTLTicks}
	return proposed, false
}

// lookupAck reports a live ACK for (actor, command id).
func (w *World) lookupAck(actorID, cmdID string, nowTick uint64) (protocol.AckMsg, bool) {
	e, ok := w.acks[ackKey{ActorID: actorID, CmdID: cmdID}]
	if !ok || nowTick >= e.ExpiresTick {
		return protocol.AckMsg{}, false
	}
	return e.Ack, true
}

func (w *World) expireAcks(nowTick uint64) {
	for k, v := range w.acks {
		if nowTick >= v.ExpiresTick {
			delete(w.acks, k)
		}
	}
}
