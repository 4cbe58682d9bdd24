package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/world"
)

func TestTickLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)

	ticks := []uint64{0, 1, 2, SegmentTicks, SegmentTicks + 1}
	for _, tick := range ticks {
		e := world.TickLogEntry{Tick: tick, Digest: "d"}
		if tick == 1 {
			e.Joins = []world.RecordedJoin{{ActorID: "A1", Name: "bot"}}
			e.Commands = []world.CommandEnvelope{{ActorID: "A1", Act: protocol.ActMsg{
				Type:     protocol.TypeAct,
				Commands: []protocol.Command{{ID: "c1", Type: protocol.CmdActivate, Ability: "sprint"}},
			}}}
		}
		require.NoError(t, l.WriteTick(e))
	}
	require.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(dir, "ticks", "*.jsonl.zst"))
	require.NoError(t, err)
	require.Len(t, files, 2)

	var got []world.TickLogEntry
	require.NoError(t, ForEachTick(dir, func(e world.TickLogEntry) error {
		got = append(got, e)
		return nil
	}))
	require.Len(t, got, len(ticks))
	for i, e := range got {
		require.Equal(t, ticks[i], e.Tick)
	}
	require.Equal(t, "A1", got[1].Joins[0].ActorID)
	require.Equal(t, "sprint", got[1].Commands[0].Act.Commands[0].Ability)

	n := 0
	require.NoError(t, ForEachTick(dir, func(world.TickLogEntry) error {
		n++
		if n == 2 {
			return ErrStop
		}
		return nil
	}))
	require.Equal(t, 2, n)
}

func TestTickLogger_ReopenAppends(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	require.NoError(t, l.WriteTick(world.TickLogEntry{Tick: 0}))
	require.NoError(t, l.Close())

	l = NewTickLogger(dir)
	require.NoError(t, l.WriteTick(world.TickLogEntry{Tick: 1}))
	require.NoError(t, l.Close())

	var ticks []uint64
	require.NoError(t, ForEachTick(dir, func(e world.TickLogEntry) error {
		ticks = append(ticks, e.Tick)
		return nil
	}))
	require.Equal(t, []uint64{0, 1}, ticks)
}

func TestAuditLogger(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	require.NoError(t, l.WriteAudit(world.AuditEntry{Tick: 3, Actor: "A1", Action: protocol.EventActivated, Ability: "heal", Tags: []string{"x"}}))
	require.NoError(t, l.Close())

	var got []world.AuditEntry
	require.NoError(t, ForEachAudit(dir, func(e world.AuditEntry) error {
		got = append(got, e)
		return nil
	}))
	require.Len(t, got, 1)
	require.Equal(t, "heal", got[0].Ability)
	require.Equal(t, []string{"x"}, got[0].Tags)
}

func TestForEachTick_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ticks"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ticks", "ticks-00000000.jsonl.zst"), []byte("not zstd"), 0o644))
	require.Error(t, ForEachTick(dir, func(world.TickLogEntry) error { return nil }))

	// Nothing logged is not an error.
	require.NoError(t, ForEachTick(t.TempDir(), func(world.TickLogEntry) error { return nil }))
}
