package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billlzzz18/bl1nk-realtime/internal/service"
	"github.com/billlzzz18/bl1nk-realtime/pkg/protocol"
)

type nullBroadcaster struct{}

func (nullBroadcaster) BroadcastAll(event string, data any)        {}
func (nullBroadcaster) SendTo(connID, event string, data any) bool { return true }
func (nullBroadcaster) SendToMany(connIDs []string, event string, data any) int {
	return len(connIDs)
}

func newHTTPFixture(t *testing.T) (service.RelayService, *mux.Router) {
	t.Helper()
	svc := service.NewRelayService(nullBroadcaster{}, nil, nil)
	h := NewHTTPHandler(svc, func() int { return 7 })

	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/presence", h.GetPresence).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/rooms", h.GetRooms).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/rooms/{room_id}", h.GetRoom).Methods(http.MethodGet)
	return svc, r
}

func doGet(t *testing.T, r http.Handler, path string, into any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if into != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
	}
	return rec.Code
}

func TestHealthReportsConnections(t *testing.T) {
	_, r := newHTTPFixture(t)

	var body HealthResponse
	code := doGet(t, r, "/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 7, body.Connections)
}

func TestPresenceEndpointReturnsEmptyListNotNull(t *testing.T) {
	_, r := newHTTPFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/presence", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRoomEndpoints(t *testing.T) {
	svc, r := newHTTPFixture(t)
	ctx := context.Background()

	svc.HandleUserJoin(ctx, "conn-1", protocol.UserJoinPayload{UserID: "alice", Username: "Alice"})
	svc.HandleRoomJoin(ctx, "conn-1", "doc-1")

	var rooms RoomsResponse
	code := doGet(t, r, "/api/v1/rooms", &rooms)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, rooms.Total)
	assert.Equal(t, []string{"doc-1"}, rooms.Rooms)

	var room RoomResponse
	code = doGet(t, r, "/api/v1/rooms/doc-1", &room)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "doc-1", room.RoomID)
	require.Equal(t, 1, room.Total)
	assert.Equal(t, "alice", room.Members[0].UserID)

	// Unknown rooms are an empty membership, not an error.
	code = doGet(t, r, "/api/v1/rooms/ghost", &room)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, room.Total)
}
