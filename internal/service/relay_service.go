package service

import (
	"context"
	"encoding/json"

	"github.com/billlzzz18/bl1nk-realtime/internal/auth"
	"github.com/billlzzz18/bl1nk-realtime/internal/metrics"
	"github.com/billlzzz18/bl1nk-realtime/internal/presence"
	"github.com/billlzzz18/bl1nk-realtime/internal/registry"
	"github.com/billlzzz18/bl1nk-realtime/pkg/log"
	"github.com/billlzzz18/bl1nk-realtime/pkg/protocol"
)

type relayService struct {
	broadcaster Broadcaster
	presence    *presence.Table
	rooms       *registry.Registry
	verifier    *auth.Verifier // nil: trust announced identities
	publisher   Publisher      // nil: bridge disabled
}

// NewRelayService creates the relay's event handler. verifier and publisher
// may be nil.
func NewRelayService(b Broadcaster, verifier *auth.Verifier, publisher Publisher) RelayService {
	return &relayService{
		broadcaster: b,
		presence:    presence.NewTable(),
		rooms:       registry.New(),
		verifier:    verifier,
		publisher:   publisher,
	}
}

func (s *relayService) HandleUserJoin(ctx context.Context, connID string, p protocol.UserJoinPayload) error {
	if p.UserID == "" {
		s.broadcaster.SendTo(connID, protocol.EventError, protocol.ErrorPayload{Message: "userId is required"})
		return nil
	}

	if s.verifier != nil {
		if _, err := s.verifier.Verify(p.Token, p.UserID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str(log.FieldConnID, connID).Msg("identity token rejected")
			s.broadcaster.SendTo(connID, protocol.EventError, protocol.ErrorPayload{Message: "invalid identity token"})
			return nil
		}
	}

	rec := s.presence.Join(connID, p, protocol.Now())
	log.Ctx(ctx).Info().
		Str(log.FieldConnID, connID).
		Str(log.FieldUserID, rec.UserID).
		Msg("user joined")

	s.broadcastPresence()
	return nil
}

func (s *relayService) HandlePresenceUpdate(ctx context.Context, connID string, p protocol.PresenceUpdatePayload) error {
	if !p.Status.Valid() {
		s.broadcaster.SendTo(connID, protocol.EventError, protocol.ErrorPayload{Message: "unknown presence status"})
		return nil
	}

	// A connection that never announced an identity has no record to
	// update; that is a no-op, not a failure.
	if !s.presence.SetStatus(connID, p.Status, protocol.Now()) {
		return nil
	}

	s.broadcastPresence()
	return nil
}

func (s *relayService) HandleRoomJoin(ctx context.Context, connID, roomID string) error {
	if roomID == "" {
		s.broadcaster.SendTo(connID, protocol.EventError, protocol.ErrorPayload{Message: "roomId is required"})
		return nil
	}

	if !s.rooms.Join(connID, roomID) {
		return nil // already a member
	}

	payload := protocol.RoomMemberPayload{
		RoomID:    roomID,
		SocketID:  connID,
		User:      s.userOf(connID),
		Timestamp: protocol.Now(),
	}
	s.broadcaster.SendToMany(s.rooms.Members(roomID), protocol.EventRoomUserJoined, payload)

	log.Ctx(ctx).Info().
		Str(log.FieldConnID, connID).
		Str(log.FieldRoomID, roomID).
		Msg("joined room")
	return nil
}

func (s *relayService) HandleRoomLeave(ctx context.Context, connID, roomID string) error {
	if !s.rooms.Leave(connID, roomID) {
		return nil
	}

	payload := protocol.RoomMemberPayload{
		RoomID:    roomID,
		SocketID:  connID,
		User:      s.userOf(connID),
		Timestamp: protocol.Now(),
	}
	s.broadcaster.SendToMany(s.rooms.Members(roomID), protocol.EventRoomUserLeft, payload)

	log.Ctx(ctx).Info().
		Str(log.FieldConnID, connID).
		Str(log.FieldRoomID, roomID).
		Msg("left room")
	return nil
}

// HandleNotificationSend delivers a notification to every connection owned
// by the target user (multiple tabs or devices all receive it). At-most-once
// and best-effort: no target connection means a silent drop, never an error
// back to the sender.
func (s *relayService) HandleNotificationSend(ctx context.Context, connID string, p protocol.NotificationSendPayload) error {
	if p.UserID == "" {
		s.broadcaster.SendTo(connID, protocol.EventError, protocol.ErrorPayload{Message: "userId is required"})
		return nil
	}

	targets := s.presence.ConnectionsOf(p.UserID)
	if len(targets) == 0 && s.publisher == nil {
		metrics.NotificationsDropped.Inc()
		log.Ctx(ctx).Debug().Str(log.FieldUserID, p.UserID).Msg("notification dropped, target not connected")
		return nil
	}

	payload := protocol.NotificationPayload{
		Notification: p.Notification,
		Timestamp:    protocol.Now(),
	}
	s.broadcaster.SendToMany(targets, protocol.EventNotification, payload)

	// Other instances may hold more connections for this user.
	s.publish(ctx, protocol.EventNotificationSend, p)
	return nil
}

func (s *relayService) HandleActivity(ctx context.Context, connID string, p protocol.ActivityPayload) error {
	p.User = s.userOf(connID)
	p.Timestamp = protocol.Now()

	s.fanOut(p.RoomID, protocol.EventActivity, p, "")
	s.publish(ctx, protocol.EventActivity, p)
	return nil
}

func (s *relayService) HandleTyping(ctx context.Context, connID, roomID string, start bool) error {
	if roomID == "" {
		return nil
	}

	event := protocol.EventTypingStart
	if !start {
		event = protocol.EventTypingStop
	}
	payload := protocol.TypingPayload{
		RoomID:    roomID,
		User:      s.userOf(connID),
		Timestamp: protocol.Now(),
	}

	// Typing indicators go to room members excluding the sender.
	members := s.rooms.Members(roomID)
	recipients := members[:0:0]
	for _, id := range members {
		if id != connID {
			recipients = append(recipients, id)
		}
	}
	s.broadcaster.SendToMany(recipients, event, payload)
	return nil
}

func (s *relayService) HandleMessage(ctx context.Context, connID string, p protocol.MessagePayload) error {
	p.User = s.userOf(connID)
	p.Timestamp = protocol.Now()

	s.fanOut(p.RoomID, protocol.EventMessage, p, "")
	s.publish(ctx, protocol.EventMessage, p)
	return nil
}

// HandleDisconnect purges the connection from every room it joined (one
// room:user-left per affected room) and from the presence table, then fans
// out the updated presence snapshot.
func (s *relayService) HandleDisconnect(ctx context.Context, connID string) {
	user := s.userOf(connID)

	for _, roomID := range s.rooms.RemoveAll(connID) {
		payload := protocol.RoomMemberPayload{
			RoomID:    roomID,
			SocketID:  connID,
			User:      user,
			Timestamp: protocol.Now(),
		}
		s.broadcaster.SendToMany(s.rooms.Members(roomID), protocol.EventRoomUserLeft, payload)
	}

	if rec, ok := s.presence.Remove(connID); ok {
		log.Ctx(ctx).Info().
			Str(log.FieldConnID, connID).
			Str(log.FieldUserID, rec.UserID).
			Msg("user disconnected")
		s.broadcastPresence()
	}
}

func (s *relayService) ApplyRemote(event string, data json.RawMessage) {
	switch event {
	case protocol.EventNotificationSend:
		var p protocol.NotificationSendPayload
		if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
			return
		}
		targets := s.presence.ConnectionsOf(p.UserID)
		if len(targets) == 0 {
			return
		}
		s.broadcaster.SendToMany(targets, protocol.EventNotification, protocol.NotificationPayload{
			Notification: p.Notification,
			Timestamp:    protocol.Now(),
		})

	case protocol.EventActivity:
		var p protocol.ActivityPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		s.fanOut(p.RoomID, protocol.EventActivity, p, "")

	case protocol.EventMessage:
		var p protocol.MessagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		s.fanOut(p.RoomID, protocol.EventMessage, p, "")

	default:
		log.L().Debug().Str(log.FieldEvent, event).Msg("ignoring unknown bridge event")
	}
}

func (s *relayService) Snapshot() []protocol.PresenceRecord {
	return s.presence.Snapshot()
}

func (s *relayService) Rooms() []string {
	return s.rooms.Rooms()
}

func (s *relayService) RoomMembers(roomID string) []protocol.PresenceRecord {
	var out []protocol.PresenceRecord
	for _, connID := range s.rooms.Members(roomID) {
		if rec, ok := s.presence.Get(connID); ok {
			out = append(out, rec)
		}
	}
	return out
}

func (s *relayService) broadcastPresence() {
	s.broadcaster.BroadcastAll(protocol.EventPresenceUpdate, s.presence.Snapshot())
}

func (s *relayService) userOf(connID string) *protocol.PresenceRecord {
	rec, ok := s.presence.Get(connID)
	if !ok {
		return nil
	}
	return &rec
}

// fanOut delivers an event to a room's members, or to everyone when roomID
// is empty.
func (s *relayService) fanOut(roomID, event string, data any, exclude string) {
	if roomID == "" {
		s.broadcaster.BroadcastAll(event, data)
		return
	}
	members := s.rooms.Members(roomID)
	if exclude != "" {
		filtered := members[:0:0]
		for _, id := range members {
			if id != exclude {
				filtered = append(filtered, id)
			}
		}
		members = filtered
	}
	s.broadcaster.SendToMany(members, event, data)
}

func (s *relayService) publish(ctx context.Context, event string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event, data); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldEvent, event).Msg("bridge publish failed")
	}
}
