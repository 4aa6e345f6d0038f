package registry

import (
	"sort"
	"sync"
)

// Sender delivers one encoded frame to a connection's peer. The
// registry never calls it; it only hands senders out in snapshots.
type Sender interface {
	Send(data []byte) error
}

// Member pairs a connection ID with its sender, as captured by
// Snapshot.
type Member struct {
	ID     string
	Sender Sender
}

// GroupInfo describes one group for introspection endpoints.
type GroupInfo struct {
	Name    string
	Members int
}

// Registry is a concurrency-safe group membership table. Groups exist
// exactly while they have members: the first Add creates a group, the
// last Remove deletes it.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]map[string]Sender
	conns  map[string]map[string]struct{} // conn ID -> group names
}

func New() *Registry {
	return &Registry{
		groups: make(map[string]map[string]Sender),
		conns:  make(map[string]map[string]struct{}),
	}
}

// Add joins a connection to a group. Adding a member that is already
// present is a no-op apart from refreshing its sender.
func (r *Registry) Add(group, id string, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[group]
	if !ok {
		g = make(map[string]Sender)
		r.groups[group] = g
	}
	g[id] = s

	c, ok := r.conns[id]
	if !ok {
		c = make(map[string]struct{})
		r.conns[id] = c
	}
	c[group] = struct{}{}
}

// Remove drops a connection from a group. Removing an absent member,
// or from an absent group, is a no-op.
func (r *Registry) Remove(group, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(group, id)
}

// RemoveEverywhere drops a connection from every group it joined and
// returns those group names, sorted. Used on disconnect so a dead
// connection never lingers in any group.
func (r *Registry) RemoveEverywhere(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return nil
	}
	removed := make([]string, 0, len(c))
	for group := range c {
		removed = append(removed, group)
	}
	for _, group := range removed {
		r.remove(group, id)
	}
	sort.Strings(removed)
	return removed
}

// MembersOf returns the IDs in a group, sorted. An unknown group yields
// an empty slice.
func (r *Registry) MembersOf(group string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g := r.groups[group]
	out := make([]string, 0, len(g))
	for id := range g {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// GroupsOf returns the groups a connection belongs to, sorted.
func (r *Registry) GroupsOf(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := r.conns[id]
	out := make([]string, 0, len(c))
	for group := range c {
		out = append(out, group)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of members in a group.
func (r *Registry) Count(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}

// Snapshot captures a group's members at one instant. Delivery works
// from the returned slice, so members added or removed mid-broadcast
// do not tear the recipient set.
func (r *Registry) Snapshot(group string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g := r.groups[group]
	out := make([]Member, 0, len(g))
	for id, s := range g {
		out = append(out, Member{ID: id, Sender: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Groups lists every live group, sorted by name.
func (r *Registry) Groups() []GroupInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]GroupInfo, 0, len(r.groups))
	for name, g := range r.groups {
		out = append(out, GroupInfo{Name: name, Members: len(g)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Connections returns the number of distinct connections across all
// groups.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// remove requires r.mu held for writing.
func (r *Registry) remove(group, id string) {
	g, ok := r.groups[group]
	if !ok {
		return
	}
	delete(g, id)
	if len(g) == 0 {
		delete(r.groups, group)
	}
	if c, ok := r.conns[id]; ok {
		delete(c, group)
		if len(c) == 0 {
			delete(r.conns, id)
		}
	}
}
