package protocol

import (
	"encoding/json"
	"time"
)

// Envelope is the frame format on the wire. Every WebSocket text frame
// carries exactly one envelope; the underlying ordered transport preserves
// relay-side emission order per connection.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope. Marshal errors surface to the
// caller; payload types in this package cannot fail to marshal.
func NewEnvelope(event string, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: event, Data: raw}, nil
}

// Status is a user's presence status.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// Valid reports whether s is one of the four presence statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// PresenceRecord is the status snapshot tracked per connected user.
// LastSeen is milliseconds since epoch and is monotonically non-decreasing
// for a record while its connection lives.
type PresenceRecord struct {
	SocketID string `json:"socketId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Status   Status `json:"status"`
	LastSeen int64  `json:"lastSeen"`
	Avatar   string `json:"avatar,omitempty"`
}

// UserJoinPayload announces the client's identity after connecting.
type UserJoinPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Token    string `json:"token,omitempty"` // optional, verified when the relay has a secret configured
}

// PresenceUpdatePayload is the client -> relay status announcement.
type PresenceUpdatePayload struct {
	Status    Status `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// RoomPayload carries room:join / room:leave / typing:start / typing:stop.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// RoomMemberPayload is the room:user-joined / room:user-left fan-out.
type RoomMemberPayload struct {
	RoomID    string          `json:"roomId"`
	SocketID  string          `json:"socketId"`
	User      *PresenceRecord `json:"user,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NotificationSendPayload targets a notification at a user id. The relay
// forwards Notification verbatim to every connection of that user, adding a
// timestamp.
type NotificationSendPayload struct {
	UserID       string          `json:"userId"`
	Notification json.RawMessage `json:"notification"`
}

// NotificationPayload is the relay -> client delivery.
type NotificationPayload struct {
	Notification json.RawMessage `json:"notification"`
	Timestamp    int64           `json:"timestamp"`
}

// ActivityPayload carries arbitrary activity data, optionally room-scoped.
// User and Timestamp are injected relay-side on fan-out.
type ActivityPayload struct {
	RoomID    string          `json:"roomId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	User      *PresenceRecord `json:"user,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// MessagePayload carries arbitrary message data, optionally room-scoped.
type MessagePayload struct {
	RoomID    string          `json:"roomId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	User      *PresenceRecord `json:"user,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// TypingPayload is the typing indicator fan-out to room members.
type TypingPayload struct {
	RoomID    string          `json:"roomId"`
	User      *PresenceRecord `json:"user,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ErrorPayload is sent to a client when a request cannot be handled.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ConnectionPayload is the client-local connection state event.
type ConnectionPayload struct {
	Status string `json:"status"` // "connected" | "disconnected"
	Reason string `json:"reason,omitempty"`
}

// Now returns the current wall clock in milliseconds since epoch, the
// timestamp unit used on the wire.
func Now() int64 {
	return time.Now().UnixMilli()
}
