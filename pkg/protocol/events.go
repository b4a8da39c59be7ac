// Package protocol defines the wire contract between the relay and its
// clients: event names and the JSON payload shapes carried by each event.
// Both the relay internals and pkg/relayclient build on it.
package protocol

// Client -> relay events.
const (
	EventUserJoin         = "user:join"
	EventPresenceUpdate   = "presence:update" // also relay -> client (full snapshot)
	EventRoomJoin         = "room:join"
	EventRoomLeave        = "room:leave"
	EventNotificationSend = "notification:send"
	EventActivityTrack    = "activity:track"
	EventTypingStart      = "typing:start" // also relay -> room members
	EventTypingStop       = "typing:stop"  // also relay -> room members
	EventMessage          = "message"      // bidirectional
)

// Relay -> client events.
const (
	EventRoomUserJoined = "room:user-joined"
	EventRoomUserLeft   = "room:user-left"
	EventNotification   = "notification"
	EventActivity       = "activity"
	EventError          = "error"
)

// Client-local events emitted by the transport, never sent on the wire.
const (
	EventConnection = "connection"
)
