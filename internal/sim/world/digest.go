package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"futdrill.ai/internal/sim/geom"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// Digest hashes the exact bit patterns of every body plus the bookkeeping
// objectives read. Two runs fed the same inputs must agree tick by tick.
func (w *World) Digest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, w.gen)
	digestWriteU64(h, &tmp, w.tick)
	digestWriteF64(h, &tmp, w.simTime)

	for _, e := range w.bodies {
		h.Write([]byte(e.ID))
		h.Write([]byte{0, boolByte(e.IsBot), boolByte(e.ChargingKick), boolByte(e.KickedThisPress), boolByte(e.touching)})
		digestWriteVec(h, &tmp, e.Body.Pos)
		digestWriteVec(h, &tmp, e.Body.Vel)
		digestWriteF64(h, &tmp, e.KickCharge)
	}

	ids := make([]string, 0, len(w.touches))
	for id, n := range w.touches {
		if n != 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		h.Write([]byte(id))
		digestWriteU64(h, &tmp, uint64(w.touches[id]))
	}
	h.Write([]byte(w.lastToucher.ID))
	h.Write([]byte{0, boolByte(w.hasToucher)})
	for _, in := range w.inGoal {
		h.Write([]byte{boolByte(in)})
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteVec(h hashWriter, tmp *[8]byte, v geom.Vec2) {
	digestWriteF64(h, tmp, v.X)
	digestWriteF64(h, tmp, v.Y)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
