// Package randutil provides a rand source safe to share across request
// goroutines.
package randutil

import (
	"math/rand"
	"sync"
)

// NewLocked returns a *rand.Rand backed by a mutex-guarded source. Safe for
// concurrent use of the value methods (Float64, Intn, Int63n); callers must
// not use Read, which keeps unguarded state on rand.Rand itself.
func NewLocked(seed int64) *rand.Rand {
	return rand.New(&lockedSource{src: rand.NewSource(seed).(rand.Source64)})
}

type lockedSource struct {
	mu  sync.Mutex
	src rand.Source64
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}
