package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/component"
)

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	snap := SnapshotV1{
		Header:          Header{Version: Version, WorldID: "w", Tick: 42},
		TickRate:        20,
		AbilitiesDigest: "abc",
		Counters:        CountersV1{NextActor: 3, EventCursor: 99},
		Actors: []ActorV1{{
			ID:          "A1",
			Name:        "alice",
			ResumeToken: "resume_w_1",
			State:       component.State{},
		}},
	}
	path := Path(dir, 42)
	require.NoError(t, WriteSnapshot(path, snap))

	_, err := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	h, err := ReadHeader(path)
	require.NoError(t, err)
	require.Equal(t, snap.Header, h)

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.Equal(t, uint64(42), got.Header.Tick)
	require.Equal(t, snap.Counters, got.Counters)
	require.Len(t, got.Actors, 1)
	require.Equal(t, "resume_w_1", got.Actors[0].ResumeToken)
}

func TestReadSnapshot_RejectsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.snap.zst")
	require.NoError(t, WriteSnapshot(path, SnapshotV1{Header: Header{Version: 7}}))
	_, err := ReadSnapshot(path)
	require.ErrorContains(t, err, "unsupported snapshot version 7")
}

func TestReadSnapshot_NotZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
	_, err := ReadSnapshot(path)
	require.Error(t, err)
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	p, err := Latest(dir)
	require.NoError(t, err)
	require.Empty(t, p)

	for _, tick := range []uint64{1200, 9600, 2400} {
		require.NoError(t, WriteSnapshot(Path(dir, tick), SnapshotV1{Header: Header{Version: Version, Tick: tick}}))
	}
	p, err = Latest(dir)
	require.NoError(t, err)
	require.Equal(t, Path(dir, 9600), p)
}
