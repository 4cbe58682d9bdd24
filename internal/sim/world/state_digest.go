package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
)

// stateDigest hashes everything that must match across a replay: each
// actor's persisted component state plus its live ability view. encoding/json
// writes map keys sorted, so the bytes are stable.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], nowTick)
	h.Write(tmp[:])
	binary.LittleEndian.PutUint64(tmp[:], w.nextActorNum.Load())
	h.Write(tmp[:])

	for _, id := range w.sortedActorIDs() {
		a := w.actors[id]
		h.Write([]byte(id))
		h.Write([]byte{0})
		if b, err := json.Marshal(a.Comp.Export()); err == nil {
			h.Write(b)
		}
		if b, err := json.Marshal(a.Comp.View()); err == nil {
			h.Write(b)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
