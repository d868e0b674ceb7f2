package cache

import (
	"sync"

	"github.com/govcon/backend/internal/domain/shared"
)

// RecentEventSet is a bounded in-process set of recently seen webhook event
// IDs. It is a fast path in front of the ledger's unique-index guard, not a
// durable dedup store; restarts forget it, which is fine because the ledger
// still rejects replayed orders.
type RecentEventSet struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
	capacity int
}

// NewRecentEventSet creates a set that remembers at most capacity event IDs,
// evicting the oldest first
func NewRecentEventSet(capacity int) *RecentEventSet {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RecentEventSet{
		seen:     make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

// MarkSeen records eventID and reports true if it was new
func (s *RecentEventSet) MarkSeen(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[eventID]; ok {
		return false
	}
	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
	s.seen[eventID] = struct{}{}
	s.order = append(s.order, eventID)
	return true
}

// Forget drops eventID so a retried delivery is not short-circuited
func (s *RecentEventSet) Forget(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[eventID]; !ok {
		return
	}
	delete(s.seen, eventID)
	for i, id := range s.order {
		if id == eventID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

var _ shared.EventGuard = (*RecentEventSet)(nil)
