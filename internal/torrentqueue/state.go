package torrentqueue

import (
	"sort"
	"sync"
	"time"
)

// CompletedEntry tracks one finished torrent awaiting seed-time settlement.
// ActiveTime is the client's cumulative active time captured when the
// torrent was first seen finished; the settle step diffs against it.
type CompletedEntry struct {
	ID         string
	ActiveTime time.Duration
}

// State holds the transient work lists consulted across polls: ids freshly
// added to the transfer client, and finished torrents awaiting removal.
// Access is push/drain/drop only, never read-modify-write, so concurrent
// jobs cannot interleave partial updates. Everything here can be rebuilt
// from the record store if lost.
type State struct {
	mu        sync.Mutex
	added     []string
	addedSeen map[string]struct{}
	completed map[string]CompletedEntry
}

func NewState() *State {
	return &State{
		addedSeen: make(map[string]struct{}),
		completed: make(map[string]CompletedEntry),
	}
}

// PushAdded queues a newly-added torrent id for option processing.
// Duplicate pushes between drains collapse into one entry.
func (s *State) PushAdded(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.addedSeen[id]; ok {
		return
	}
	s.addedSeen[id] = struct{}{}
	s.added = append(s.added, id)
}

// DrainAdded removes and returns every queued added id in push order.
func (s *State) DrainAdded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.added
	s.added = nil
	s.addedSeen = make(map[string]struct{})
	return out
}

// TrackCompleted registers a finished torrent. Reports false when the id is
// already tracked, so the captured active time is never reset.
func (s *State) TrackCompleted(e CompletedEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.completed[e.ID]; ok {
		return false
	}
	s.completed[e.ID] = e
	return true
}

// CompletedTracked reports whether an id is already in the completed list.
func (s *State) CompletedTracked(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completed[id]
	return ok
}

// Completed snapshots the tracked entries in a stable order.
func (s *State) Completed() []CompletedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CompletedEntry, 0, len(s.completed))
	for _, e := range s.completed {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DropCompleted removes one entry; entries not dropped stay queued for the
// next poll.
func (s *State) DropCompleted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.completed, id)
}
