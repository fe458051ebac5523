// Package random provides the seeded pseudo-random stream a worker draws all of
// its decisions from: session GUIDs, interaction targets and scenario choices.
//
// A fixed key yields an identical sequence of values, so a fixed seed and a
// fixed worker count reproduce the same logical run.
package random

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Stream is a deterministic pseudo-random source. It is safe for concurrent
// use; concurrent callers are serialized, so their relative order follows
// scheduling rather than the seed.
type Stream struct {
	mu  sync.Mutex
	key string
	rnd *rand.Rand
}

// New seeds a stream from key.
func New(key string) *Stream {
	return &Stream{
		key: key,
		rnd: rand.New(rand.NewSource(int64(xxhash.Sum64String(key)))),
	}
}

// Key builds the seed key for a worker: "<seed>_<workerID>", or
// "<hostname>_<workerID>" when no global seed is given.
func Key(seed string, workerID int) string {
	base := strings.TrimSpace(seed)
	if base == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "localhost"
		}
		base = host
	}
	return fmt.Sprintf("%s_%d", base, workerID)
}

// SeedKey returns the key the stream was seeded with.
func (s *Stream) SeedKey() string {
	return s.key
}

// Next returns an integer uniformly distributed in [low, high).
// It returns low when the range is empty.
func (s *Stream) Next(low, high int) int {
	if high <= low {
		return low
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return low + s.rnd.Intn(high-low)
}

// Float64 returns a value in [0.0, 1.0).
func (s *Stream) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// GUID returns a version 4 UUID whose random bits come from the stream.
func (s *Stream) GUID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := uuid.NewRandomFromReader(s.rnd)
	if err != nil {
		// rand.Rand.Read never fails.
		return uuid.Nil.String()
	}
	return id.String()
}
