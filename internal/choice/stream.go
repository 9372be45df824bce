package choice

import (
	"daysim/internal/domain"
	"encoding/binary"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// Stream selectors keep the calculator draw and the sampler draws of one
// decision independent of each other.
const (
	StreamChoice uint64 = iota + 1
	StreamSampling
)

// Seed hashes a decision identity into a 64-bit seed. It depends only on the
// key, never on scheduling, so every worker derives the same value.
func Seed(key domain.DecisionKey) uint64 {
	var buf [40]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(int64(key.HouseholdID)))
	binary.LittleEndian.PutUint64(buf[8:], uint64(int64(key.PersonID)))
	binary.LittleEndian.PutUint64(buf[16:], uint64(int64(key.TourID)))
	binary.LittleEndian.PutUint64(buf[24:], uint64(int64(key.TripID)))
	binary.LittleEndian.PutUint64(buf[32:], uint64(int64(key.ModelOffset)))
	return xxhash.Sum64(buf[:])
}

// NewStream returns a private random stream for one decision.
func NewStream(key domain.DecisionKey, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(Seed(key), stream))
}
