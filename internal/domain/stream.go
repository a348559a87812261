package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
)

// Stream is the deterministic random stream of one building.
type Stream struct {
	rng *rand.Rand
}

// NewStream derives a building's random stream from the run seed and the
// building's stable identifier. The same (seed, id) pair always yields the
// same sequence of draws.
func NewStream(seed uint64, buildingID string) *Stream {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	h := sha256.New()
	h.Write(buf[:])
	h.Write([]byte{'|'})
	h.Write([]byte(buildingID))
	sum := h.Sum(nil)
	s1 := binary.BigEndian.Uint64(sum[0:8])
	s2 := binary.BigEndian.Uint64(sum[8:16])
	return &Stream{rng: rand.New(rand.NewPCG(s1, s2))}
}

// Draw returns the next value in [0, 1).
func (s *Stream) Draw() float64 {
	return s.rng.Float64()
}
