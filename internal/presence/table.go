// Package presence holds the relay's in-memory table of connected users.
// The table is process-local mutable state with no persistence: a relay
// restart loses it and clients re-announce on reconnect.
package presence

import (
	"sort"
	"sync"

	"github.com/billlzzz18/bl1nk-realtime/pkg/protocol"
)

// Table maps connection id -> presence record. All methods are safe for
// concurrent use.
type Table struct {
	mu      sync.RWMutex
	records map[string]*protocol.PresenceRecord
}

// NewTable creates an empty presence table.
func NewTable() *Table {
	return &Table{records: make(map[string]*protocol.PresenceRecord)}
}

// Join records the identity announced by a connection. The record starts
// online with LastSeen set to now.
func (t *Table) Join(connID string, user protocol.UserJoinPayload, now int64) protocol.PresenceRecord {
	rec := protocol.PresenceRecord{
		SocketID: connID,
		UserID:   user.UserID,
		Username: user.Username,
		Avatar:   user.Avatar,
		Status:   protocol.StatusOnline,
		LastSeen: now,
	}

	t.mu.Lock()
	t.records[connID] = &rec
	t.mu.Unlock()

	return rec
}

// SetStatus updates the status of the record owned by connID. LastSeen is
// clamped to be monotonically non-decreasing while the connection lives.
// Returns false if connID has not announced an identity.
func (t *Table) SetStatus(connID string, status protocol.Status, now int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[connID]
	if !ok {
		return false
	}
	rec.Status = status
	if now > rec.LastSeen {
		rec.LastSeen = now
	}
	return true
}

// Get returns a copy of the record owned by connID.
func (t *Table) Get(connID string) (protocol.PresenceRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[connID]
	if !ok {
		return protocol.PresenceRecord{}, false
	}
	return *rec, true
}

// ConnectionsOf returns the connection ids currently associated with userID.
// A user with several tabs or devices holds several connections; callers
// deliver per-user traffic to every one of them.
func (t *Table) ConnectionsOf(userID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ids []string
	for connID, rec := range t.records {
		if rec.UserID == userID {
			ids = append(ids, connID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Remove deletes the record owned by connID, returning the removed record.
func (t *Table) Remove(connID string) (protocol.PresenceRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[connID]
	if !ok {
		return protocol.PresenceRecord{}, false
	}
	delete(t.records, connID)
	return *rec, true
}

// Snapshot returns a copy of every record, ordered by connection id so
// consumers see a stable listing.
func (t *Table) Snapshot() []protocol.PresenceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]protocol.PresenceRecord, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SocketID < out[j].SocketID })
	return out
}

// Len returns the number of announced connections.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
