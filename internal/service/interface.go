package service

import (
	"context"
	"encoding/json"

	"github.com/billlzzz18/bl1nk-realtime/pkg/protocol"
)

// Broadcaster is the delivery surface the relay service needs from the hub.
// Narrowing it to an interface keeps the service's state machine testable
// without sockets.
type Broadcaster interface {
	BroadcastAll(event string, data any)
	SendTo(connID, event string, data any) bool
	SendToMany(connIDs []string, event string, data any) int
}

// Publisher forwards fan-out events to other relay instances. Nil when the
// bridge is disabled.
type Publisher interface {
	Publish(ctx context.Context, event string, data any) error
}

// RelayService handles every client-originated event plus disconnects.
// All handlers are best-effort: failures degrade to reduced functionality
// and never propagate an error back across the client boundary.
type RelayService interface {
	HandleUserJoin(ctx context.Context, connID string, p protocol.UserJoinPayload) error
	HandlePresenceUpdate(ctx context.Context, connID string, p protocol.PresenceUpdatePayload) error
	HandleRoomJoin(ctx context.Context, connID, roomID string) error
	HandleRoomLeave(ctx context.Context, connID, roomID string) error
	HandleNotificationSend(ctx context.Context, connID string, p protocol.NotificationSendPayload) error
	HandleActivity(ctx context.Context, connID string, p protocol.ActivityPayload) error
	HandleTyping(ctx context.Context, connID, roomID string, start bool) error
	HandleMessage(ctx context.Context, connID string, p protocol.MessagePayload) error
	HandleDisconnect(ctx context.Context, connID string)

	// ApplyRemote re-fans-out an event received from another relay
	// instance over the bridge. It never republishes.
	ApplyRemote(event string, data json.RawMessage)

	// Read side for the HTTP API.
	Snapshot() []protocol.PresenceRecord
	Rooms() []string
	RoomMembers(roomID string) []protocol.PresenceRecord
}
