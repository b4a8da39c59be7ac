package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/billlzzz18/bl1nk-realtime/internal/hub"
	"github.com/billlzzz18/bl1nk-realtime/internal/metrics"
	"github.com/billlzzz18/bl1nk-realtime/internal/service"
	"github.com/billlzzz18/bl1nk-realtime/pkg/log"
	"github.com/billlzzz18/bl1nk-realtime/pkg/protocol"
)

// WSHandler upgrades connections and dispatches wire envelopes to the
// relay service.
type WSHandler struct {
	hub      *hub.Hub
	service  service.RelayService
	wsCfg    hub.Config
	upgrader websocket.Upgrader
}

// NewWSHandler creates the WebSocket handler. allowedOrigin is compared
// against the Origin header on upgrade; "*" allows any origin and
// same-origin requests (no Origin header) always pass.
func NewWSHandler(h *hub.Hub, svc service.RelayService, wsCfg hub.Config, allowedOrigin string) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage, func(c *hub.Client) {
		// The request context is gone once the handler returns; disconnect
		// cleanup runs on its own context.
		h.service.HandleDisconnect(context.Background(), c.ID)
	})
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		h.hub.SendTo(client.ID, protocol.EventError, protocol.ErrorPayload{Message: "invalid envelope"})
		return
	}

	metrics.EventsTotal.WithLabelValues(env.Event).Inc()
	ctx := log.WithLogger(
		context.Background(),
		log.L().With().Str(log.FieldConnID, client.ID).Logger(),
	)

	switch env.Event {
	case protocol.EventUserJoin:
		var p protocol.UserJoinPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.service.HandleUserJoin(ctx, client.ID, p)

	case protocol.EventPresenceUpdate:
		var p protocol.PresenceUpdatePayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.service.HandlePresenceUpdate(ctx, client.ID, p)

	case protocol.EventRoomJoin:
		var p protocol.RoomPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.service.HandleRoomJoin(ctx, client.ID, p.RoomID)

	case protocol.EventRoomLeave:
		var p protocol.RoomPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.service.HandleRoomLeave(ctx, client.ID, p.RoomID)

	case protocol.EventNotificationSend:
		var p protocol.NotificationSendPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.service.HandleNotificationSend(ctx, client.ID, p)

	case protocol.EventActivityTrack:
		var p protocol.ActivityPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.service.HandleActivity(ctx, client.ID, p)

	case protocol.EventTypingStart, protocol.EventTypingStop:
		var p protocol.RoomPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.service.HandleTyping(ctx, client.ID, p.RoomID, env.Event == protocol.EventTypingStart)

	case protocol.EventMessage:
		var p protocol.MessagePayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.service.HandleMessage(ctx, client.ID, p)

	default:
		h.hub.SendTo(client.ID, protocol.EventError, protocol.ErrorPayload{Message: "unknown event: " + env.Event})
	}
}

func (h *WSHandler) decode(client *hub.Client, data json.RawMessage, into any) bool {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, into); err != nil {
		h.hub.SendTo(client.ID, protocol.EventError, protocol.ErrorPayload{Message: "invalid payload"})
		return false
	}
	return true
}
