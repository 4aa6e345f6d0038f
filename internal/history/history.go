package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Entry is one recorded chat message.
type Entry struct {
	ID       uint64
	Room     string
	Username string
	Message  string
	At       time.Time
}

// RoomInfo summarizes one room for the listing endpoint.
type RoomInfo struct {
	Name     string
	Messages int
	LastAt   time.Time
}

// Store holds per-room message logs, newest last. Each room keeps at
// most maxPerRoom entries; Run sweeps out entries older than the
// retention window.
type Store struct {
	mu         sync.RWMutex
	rooms      map[string][]Entry
	nextID     uint64
	maxPerRoom int
	retention  time.Duration

	now func() time.Time
}

// New builds a store. maxPerRoom <= 0 means unbounded; retention <= 0
// disables the sweep.
func New(maxPerRoom int, retention time.Duration) *Store {
	return &Store{
		rooms:      make(map[string][]Entry),
		maxPerRoom: maxPerRoom,
		retention:  retention,
		now:        time.Now,
	}
}

// Append records one message and returns the stored entry, including
// its assigned ID and timestamp.
func (s *Store) Append(room, username, message string) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	e := Entry{
		ID:       s.nextID,
		Room:     room,
		Username: username,
		Message:  message,
		At:       s.now().UTC(),
	}
	entries := append(s.rooms[room], e)
	if s.maxPerRoom > 0 && len(entries) > s.maxPerRoom {
		// Copy so the dropped head can be collected.
		entries = append([]Entry(nil), entries[len(entries)-s.maxPerRoom:]...)
	}
	s.rooms[room] = entries
	return e
}

// List returns a page of a room's messages in chronological order.
// offset counts back from the newest message, so offset 0 with limit
// 50 is the most recent 50, still oldest-first in the result.
func (s *Store) List(room string, limit, offset int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.rooms[room]
	total := len(entries)
	if limit <= 0 || offset < 0 || offset >= total {
		return []Entry{}
	}
	end := total - offset
	start := end - limit
	if start < 0 {
		start = 0
	}
	return append([]Entry(nil), entries[start:end]...)
}

// Count returns the number of stored messages for a room.
func (s *Store) Count(room string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[room])
}

// Rooms lists every room with at least one message, sorted by name.
func (s *Store) Rooms() []RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RoomInfo, 0, len(s.rooms))
	for name, entries := range s.rooms {
		out = append(out, RoomInfo{
			Name:     name,
			Messages: len(entries),
			LastAt:   entries[len(entries)-1].At,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete drops a room's entire log and returns how many entries went
// with it.
func (s *Store) Delete(room string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.rooms[room])
	delete(s.rooms, room)
	return n
}

// Run sweeps expired entries until ctx is canceled. With no retention
// configured it returns immediately.
func (s *Store) Run(ctx context.Context) {
	if s.retention <= 0 {
		return
	}
	ticker := time.NewTicker(sweepInterval(s.retention))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evict(s.now())
		}
	}
}

// evict drops entries older than the retention window. Entries are
// chronological, so each room trims from the front.
func (s *Store) evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.retention)
	evicted := 0
	for room, entries := range s.rooms {
		keep := sort.Search(len(entries), func(i int) bool {
			return !entries[i].At.Before(cutoff)
		})
		if keep == 0 {
			continue
		}
		evicted += keep
		if keep == len(entries) {
			delete(s.rooms, room)
			continue
		}
		s.rooms[room] = append([]Entry(nil), entries[keep:]...)
	}
	return evicted
}

func sweepInterval(retention time.Duration) time.Duration {
	interval := retention / 2
	if interval < time.Second {
		return time.Second
	}
	if interval > 5*time.Minute {
		return 5 * time.Minute
	}
	return interval
}
