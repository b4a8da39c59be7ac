package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/billlzzz18/bl1nk-realtime/internal/service"
	"github.com/billlzzz18/bl1nk-realtime/pkg/protocol"
)

// HTTPHandler serves the relay's read-only HTTP API and health endpoint.
type HTTPHandler struct {
	service   service.RelayService
	connCount func() int
	started   time.Time
}

// NewHTTPHandler creates the HTTP handler. connCount reports live socket
// connections (announced or not); typically hub.Len.
func NewHTTPHandler(svc service.RelayService, connCount func() int) *HTTPHandler {
	return &HTTPHandler{service: svc, connCount: connCount, started: time.Now()}
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Connections   int    `json:"connections"`
}

// RoomResponse is the GET /api/v1/rooms/{room_id} body.
type RoomResponse struct {
	RoomID  string                    `json:"room_id"`
	Members []protocol.PresenceRecord `json:"members"`
	Total   int                       `json:"total"`
}

// RoomsResponse is the GET /api/v1/rooms body.
type RoomsResponse struct {
	Rooms []string `json:"rooms"`
	Total int      `json:"total"`
}

// HealthCheck handles GET /health.
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Connections:   h.connCount(),
	})
}

// GetPresence handles GET /api/v1/presence, returning the full presence
// snapshot.
func (h *HTTPHandler) GetPresence(w http.ResponseWriter, r *http.Request) {
	snapshot := h.service.Snapshot()
	if snapshot == nil {
		snapshot = []protocol.PresenceRecord{}
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// GetRooms handles GET /api/v1/rooms.
func (h *HTTPHandler) GetRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.service.Rooms()
	writeJSON(w, http.StatusOK, RoomsResponse{Rooms: rooms, Total: len(rooms)})
}

// GetRoom handles GET /api/v1/rooms/{room_id}.
func (h *HTTPHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]
	if roomID == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}

	members := h.service.RoomMembers(roomID)
	if members == nil {
		members = []protocol.PresenceRecord{}
	}
	writeJSON(w, http.StatusOK, RoomResponse{RoomID: roomID, Members: members, Total: len(members)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
