// Package registry tracks room membership: room id -> set of connection ids.
// Rooms are created implicitly on first join and deleted immediately when
// their membership becomes empty. Membership is not persisted across relay
// restarts.
package registry

import (
	"sort"
	"sync"
)

// Registry is the relay-side room membership table. All methods are safe
// for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{rooms: make(map[string]map[string]struct{})}
}

// Join adds connID to roomID, creating the room on first join. Returns
// false if the connection was already a member.
func (r *Registry) Join(connID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	if _, exists := members[connID]; exists {
		return false
	}
	members[connID] = struct{}{}
	return true
}

// Leave removes connID from roomID. The room entry is deleted as soon as
// it becomes empty; there is no grace period. Returns false if the
// connection was not a member.
func (r *Registry) Leave(connID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, exists := members[connID]; !exists {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
	return true
}

// RemoveAll removes connID from every room it belongs to and returns the
// affected room ids, each exactly once. This is the O(rooms) disconnect
// scan; room counts are expected to stay small.
func (r *Registry) RemoveAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected []string
	for roomID, members := range r.rooms {
		if _, exists := members[connID]; !exists {
			continue
		}
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
		affected = append(affected, roomID)
	}
	sort.Strings(affected)
	return affected
}

// Members returns the connection ids in roomID, sorted for stable fan-out
// order. Returns nil for an unknown room.
func (r *Registry) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(members))
	for connID := range members {
		out = append(out, connID)
	}
	sort.Strings(out)
	return out
}

// IsMember reports whether connID belongs to roomID.
func (r *Registry) IsMember(connID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	_, exists := members[connID]
	return exists
}

// Rooms returns all room ids with at least one member, sorted.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.rooms))
	for roomID := range r.rooms {
		out = append(out, roomID)
	}
	sort.Strings(out)
	return out
}
