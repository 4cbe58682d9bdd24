package world

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/persistence/snapshot"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
)

func TestSnapshotRoundTrip(t *testing.T) {
	w1 := newTestWorld(t)
	a1, _ := joinOne(t, w1, "one")
	a2, _ := joinOne(t, w1, "two")
	in := 2
	w1.StepOnce(nil, nil, []CommandEnvelope{
		act(a1, activate("heal"), cmd(protocol.CmdBlockInput, func(c *protocol.Command) { c.InputID = &in })),
		act(a2, cmd(protocol.CmdInhibit, func(c *protocol.Command) { c.Inhibit = true })),
	})
	stepN(w1, 3)

	last := w1.CurrentTick() - 1
	snap := w1.ExportSnapshot(last)
	path := snapshot.Path(t.TempDir(), last)
	require.NoError(t, snapshot.WriteSnapshot(path, snap))

	h, err := snapshot.ReadHeader(path)
	require.NoError(t, err)
	require.Equal(t, last, h.Tick)
	require.Equal(t, "test", h.WorldID)

	loaded, err := snapshot.ReadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, loaded.Actors, 2)

	w2 := newTestWorld(t)
	require.NoError(t, w2.ImportSnapshot(loaded))
	require.Equal(t, w1.CurrentTick(), w2.CurrentTick())
	require.Equal(t, w1.stateDigest(last), w2.stateDigest(last))

	c := w2.Component(a1)
	require.Equal(t, 45.0, attr(t, c, "Mana"))
	require.True(t, c.HasTag("Cooldown.Heal"))
	require.True(t, c.IsInputBlocked(2))
	require.True(t, w2.Component(a2).UserActivationInhibited())
	require.Equal(t, w1.actors[a1].ResumeToken, w2.actors[a1].ResumeToken)

	// Both worlds keep agreeing once they run on.
	for i := 0; i < 50; i++ {
		var cmds1, cmds2 []CommandEnvelope
		if i == 5 {
			c := activate("sprint")
			cmds1 = []CommandEnvelope{act(a2, c)}
			cmds2 = []CommandEnvelope{act(a2, c)}
		}
		t1, d1 := w1.StepOnce(nil, nil, cmds1)
		t2, d2 := w2.StepOnce(nil, nil, cmds2)
		require.Equal(t, t1, t2)
		require.Equal(t, d1, d2, "tick %d", t1)
	}
	require.False(t, c.HasTag("Cooldown.Heal"))

	// A new joiner gets the next id in both.
	id1, _ := joinOne(t, w1, "three")
	id2, _ := joinOne(t, w2, "three")
	require.Equal(t, id1, id2)
}

func TestImportSnapshot_Rejects(t *testing.T) {
	w := newTestWorld(t)
	snap := w.ExportSnapshot(0)

	bad := snap
	bad.Header.Version = 99
	require.Error(t, w.ImportSnapshot(bad))

	bad = snap
	bad.Header.WorldID = "elsewhere"
	require.Error(t, w.ImportSnapshot(bad))
}

func TestLatestSnapshot(t *testing.T) {
	dir := t.TempDir()
	p, err := snapshot.Latest(dir)
	require.NoError(t, err)
	require.Empty(t, p)

	w := newTestWorld(t)
	joinOne(t, w, "one")
	for _, tick := range []uint64{5, 120, 40} {
		require.NoError(t, snapshot.WriteSnapshot(snapshot.Path(dir, tick), w.ExportSnapshot(tick)))
	}
	p, err = snapshot.Latest(dir)
	require.NoError(t, err)
	require.Equal(t, snapshot.Path(dir, 120), p)
}
