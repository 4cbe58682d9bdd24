package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// roundTrip marshals v the way the server writes it and decodes it back to
// a generic value for validation.
func roundTrip(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var out any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestSchemas_ValidateMessages(t *testing.T) {
	digest := strings.Repeat("ab", 32)
	input := 2

	cases := []struct {
		schema string
		msg    any
	}{
		{"hello.schema.json", protocol.HelloMsg{
			Type:            protocol.TypeHello,
			ProtocolVersion: protocol.Version,
			ActorName:       "bot1",
			Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
		}},
		{"welcome.schema.json", protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       "s-1",
			ActorID:         "A1",
			ResumeToken:     "resume_arena_1",
			WorldParams:     protocol.WorldParams{TickRateHz: 20, WorldID: "arena"},
			Catalogs: protocol.CatalogDigests{
				Abilities: protocol.DigestRef{Digest: digest, Count: 7},
				Effects:   protocol.DigestRef{Digest: digest, Count: 3},
			},
		}},
		{"act.schema.json", protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Tick:            4,
			ActorID:         "A1",
			Commands: []protocol.Command{
				{ID: "c1", Type: protocol.CmdActivate, Ability: "fireball", PredictionKey: 3},
				{ID: "c2", Type: protocol.CmdBlockInput, InputID: &input},
				{ID: "c3", Type: protocol.CmdEvent, Tag: "Event.Cast.Fireball", TargetID: "A2", Magnitude: 1},
				{ID: "c4", Type: protocol.CmdDecline, Ability: "charge_shot"},
			},
		}},
		{"state.schema.json", protocol.StateMsg{
			Type:            protocol.TypeState,
			ProtocolVersion: protocol.Version,
			Tick:            4,
			Actors: []protocol.ActorState{{
				ActorID:    "A1",
				OwnedTags:  []string{"Status.Burning"},
				Attributes: map[string]float64{"Health": 90},
				Abilities: []protocol.AbilityState{
					{Handle: 1, Ability: "fireball", Level: 1, InputID: 1, ActiveCount: 1, State: "ACTIVE"},
				},
			}},
		}},
		{"event.schema.json", protocol.EventMsg{
			Type:            protocol.TypeEvent,
			ProtocolVersion: protocol.Version,
			Tick:            4,
			Events: []protocol.Event{
				{Cursor: 9, Tick: 4, Kind: protocol.EventFailed, ActorID: "A1", Handle: 1, Tags: []string{"Activate.Fail.Cost"}},
			},
			NextCursor: 10,
		}},
		{"ack.schema.json", protocol.AckMsg{
			Type:            protocol.TypeAck,
			ProtocolVersion: protocol.Version,
			AckFor:          "c1",
			Code:            protocol.ErrRejected,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.schema, func(t *testing.T) {
			require.NoError(t, compile(t, tc.schema).Validate(roundTrip(t, tc.msg)))
		})
	}
}

func TestSchemas_RejectBadAct(t *testing.T) {
	s := compile(t, "act.schema.json")
	var v any
	require.NoError(t, json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.0",
	  "tick":0,
	  "actor_id":"A1",
	  "commands":[{"id":"c1","type":"TELEPORT"}]
	}`), &v))
	require.Error(t, s.Validate(v))
}

func TestCommandValid(t *testing.T) {
	in := 1
	require.True(t, protocol.Command{ID: "a", Type: protocol.CmdActivate, Handle: 1}.Valid())
	require.False(t, protocol.Command{ID: "a", Type: protocol.CmdActivate}.Valid())
	require.False(t, protocol.Command{Type: protocol.CmdInhibit}.Valid())
	require.True(t, protocol.Command{ID: "a", Type: protocol.CmdPressInput, InputID: &in}.Valid())
	require.False(t, protocol.Command{ID: "a", Type: protocol.CmdCancelTasks, Ability: "x"}.Valid())
	require.False(t, protocol.Command{ID: "a", Type: protocol.CmdDecline}.Valid())
	require.False(t, protocol.Command{ID: "a", Type: "NOPE"}.Valid())
}

func TestDecodeBase(t *testing.T) {
	b, err := protocol.DecodeBase([]byte(`{"type":"ACT","protocol_version":"1.0","commands":[]}`))
	require.NoError(t, err)
	require.Equal(t, protocol.TypeAct, b.Type)
	require.Equal(t, protocol.Version, b.ProtocolVersion)
}
