package alerts

import (
	"sync"
	"time"

	"banalert/internal/model"
)

// Store keeps the most recent deliveries in memory, oldest first.
type Store struct {
	mu    sync.RWMutex
	buf   []model.Delivery
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 500
	}
	return &Store{limit: limit}
}

func (s *Store) Add(d model.Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, d)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = d
}

func (s *Store) List(limit int) []model.Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.Delivery, 0, limit)
	start := len(s.buf) - limit
	for i := start; i < len(s.buf); i++ {
		out = append(out, s.buf[i])
	}
	return out
}

func (s *Store) Since(ts time.Time) []model.Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Delivery, 0)
	for _, d := range s.buf {
		if !d.ReceivedAt.Before(ts) {
			out = append(out, d)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
