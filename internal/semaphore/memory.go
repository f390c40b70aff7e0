package semaphore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in-process. It backs single-daemon deployments
// without Redis and the test suite. Expiries mirror the Redis TTL so a leaked
// slot still self-heals.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string]*memorySlot
}

type memorySlot struct {
	count     int
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]*memorySlot)}
}

func (s *MemoryStore) Acquire(_ context.Context, queue string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.slots[queue]
	if slot != nil && time.Now().After(slot.expiresAt) {
		delete(s.slots, queue)
		slot = nil
	}
	if slot != nil && slot.count >= limit {
		return false, nil
	}
	if slot == nil {
		slot = &memorySlot{}
		s.slots[queue] = slot
	}
	slot.count++
	slot.expiresAt = time.Now().Add(slotTTL)
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, queue string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.slots[queue]
	if slot == nil {
		return false, nil
	}
	// An expired slot is already gone in the Redis store; releasing it
	// must not decrement whatever a new holder acquired in the meantime.
	if time.Now().After(slot.expiresAt) {
		delete(s.slots, queue)
		return false, nil
	}
	if slot.count <= 1 {
		delete(s.slots, queue)
		return false, nil
	}
	slot.count--
	return true, nil
}

func (s *MemoryStore) Count(_ context.Context, queue string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.slots[queue]
	if slot == nil || time.Now().After(slot.expiresAt) {
		return 0, nil
	}
	return slot.count, nil
}

var _ Store = (*MemoryStore)(nil)
