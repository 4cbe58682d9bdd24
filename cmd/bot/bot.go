package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
)

// routine is one thing the bot does on a fixed tick period.
type routine struct {
	name   string
	period uint64
	next   uint64
	build  func(b *bot, self protocol.ActorState, st protocol.StateMsg) []protocol.Command
}

type bot struct {
	conn *websocket.Conn
	log  *zap.Logger

	actorID string
	seq     int

	routines []*routine

	accepted int
	rejected int
	events   map[string]int
}

func newBot(conn *websocket.Conn, log *zap.Logger) *bot {
	b := &bot{conn: conn, log: log, events: map[string]int{}}
	b.routines = []*routine{
		{name: "sprint", period: 100, build: sprintToggle},
		{name: "fireball", period: 60, next: 10, build: castFireball},
		{name: "charge", period: 150, next: 40, build: chargeShot},
		{name: "heal", period: 10, build: healWhenHurt},
	}
	return b
}

func (b *bot) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s_%d", prefix, b.seq)
}

func sprintToggle(b *bot, self protocol.ActorState, _ protocol.StateMsg) []protocol.Command {
	st, ok := abilityState(self, "sprint")
	if !ok {
		return nil
	}
	if st.ActiveCount > 0 {
		return []protocol.Command{{ID: b.nextID("stop"), Type: protocol.CmdConfirm, Ability: "sprint"}}
	}
	if self.Attributes["Stamina"] < 5 {
		return nil
	}
	return []protocol.Command{{ID: b.nextID("sprint"), Type: protocol.CmdActivate, Ability: "sprint"}}
}

func castFireball(b *bot, self protocol.ActorState, st protocol.StateMsg) []protocol.Command {
	if self.Attributes["Mana"] < 10 {
		return nil
	}
	target := ""
	for _, a := range st.Actors {
		if a.ActorID != self.ActorID {
			target = a.ActorID
			break
		}
	}
	if target == "" {
		return nil
	}
	return []protocol.Command{{ID: b.nextID("cast"), Type: protocol.CmdEvent, Tag: "Event.Cast.Fireball", TargetID: target}}
}

// chargeShot starts a charge, and releases it on the next run.
func chargeShot(b *bot, self protocol.ActorState, _ protocol.StateMsg) []protocol.Command {
	st, ok := abilityState(self, "charge_shot")
	if !ok {
		return nil
	}
	if st.ActiveCount > 0 {
		return []protocol.Command{{ID: b.nextID("release"), Type: protocol.CmdConfirm, Ability: "charge_shot"}}
	}
	return []protocol.Command{{ID: b.nextID("charge"), Type: protocol.CmdActivate, Ability: "charge_shot"}}
}

func healWhenHurt(b *bot, self protocol.ActorState, _ protocol.StateMsg) []protocol.Command {
	st, ok := abilityState(self, "heal")
	if !ok || st.CooldownRemaining > 0 || self.Attributes["Health"] >= 70 {
		return nil
	}
	return []protocol.Command{{ID: b.nextID("heal"), Type: protocol.CmdActivate, Ability: "heal"}}
}

func abilityState(self protocol.ActorState, id string) (protocol.AbilityState, bool) {
	for _, a := range self.Abilities {
		if a.Ability == id {
			return a, true
		}
	}
	return protocol.AbilityState{}, false
}

// decide returns the commands due for this state. STATE is not sent on
// every tick, so a routine fires on the first state at or after its tick.
func (b *bot) decide(st protocol.StateMsg) []protocol.Command {
	var self *protocol.ActorState
	for i := range st.Actors {
		if st.Actors[i].ActorID == b.actorID {
			self = &st.Actors[i]
			break
		}
	}
	if self == nil {
		return nil
	}
	var cmds []protocol.Command
	for _, r := range b.routines {
		if st.Tick < r.next {
			continue
		}
		r.next = st.Tick + r.period
		cmds = append(cmds, r.build(b, *self, st)...)
	}
	return cmds
}

func (b *bot) hello(name string, local bool) error {
	return b.conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ActorName:       name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 16, LocallyControlled: local},
	})
}

// handle processes one server message.
func (b *bot) handle(msg []byte) error {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return nil
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return nil
		}
		b.actorID = w.ActorID
		b.log.Info("welcome",
			zap.String("actor", w.ActorID),
			zap.String("session", w.SessionID),
			zap.Int("tick_rate_hz", w.WorldParams.TickRateHz))

	case protocol.TypeState:
		var st protocol.StateMsg
		if err := json.Unmarshal(msg, &st); err != nil {
			return nil
		}
		cmds := b.decide(st)
		if len(cmds) == 0 {
			return nil
		}
		return b.conn.WriteJSON(protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Tick:            st.Tick,
			ActorID:         b.actorID,
			Commands:        cmds,
		})

	case protocol.TypeEvent:
		var ev protocol.EventMsg
		if err := json.Unmarshal(msg, &ev); err != nil {
			return nil
		}
		for _, e := range ev.Events {
			if e.ActorID != b.actorID {
				continue
			}
			b.events[e.Kind]++
			b.log.Debug("event", zap.String("kind", e.Kind), zap.String("ability", e.Ability), zap.Uint64("tick", e.Tick))
		}

	case protocol.TypeAck:
		var a protocol.AckMsg
		if err := json.Unmarshal(msg, &a); err != nil {
			return nil
		}
		if a.Accepted {
			b.accepted++
			return nil
		}
		b.rejected++
		b.log.Info("command rejected", zap.String("id", a.AckFor), zap.String("code", a.Code), zap.String("message", a.Message))
	}
	return nil
}

// run dials url and plays until ctx is done or the server goes away.
// A cancelled ctx is a clean exit.
func run(ctx context.Context, url, name string, local bool, log *zap.Logger) (*bot, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	b := newBot(conn, log)
	if err := b.hello(name, local); err != nil {
		return b, fmt.Errorf("send HELLO: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), deadline())
		_ = conn.Close()
	})
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return b, nil
			}
			return b, fmt.Errorf("read: %w", err)
		}
		if err := b.handle(msg); err != nil {
			return b, fmt.Errorf("send ACT: %w", err)
		}
	}
}
