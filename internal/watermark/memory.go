package watermark

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps a single process-wide watermark. It starts at the time
// the store is created, so history from before startup is never replayed,
// and is lost on restart.
type MemoryStore struct {
	mu sync.RWMutex
	at time.Time
}

func NewMemoryStore(start time.Time) *MemoryStore {
	return &MemoryStore{at: start}
}

// Since ignores the container name; every container shares one watermark.
func (s *MemoryStore) Since(_ context.Context, _ string) (time.Time, error) {
	return s.Current(), nil
}

// Current returns a snapshot of the watermark.
func (s *MemoryStore) Current() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.at
}

func (s *MemoryStore) Advance(_ context.Context, _ []string, to time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to.After(s.at) {
		s.at = to
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
