package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billlzzz18/bl1nk-realtime/internal/hub"
	"github.com/billlzzz18/bl1nk-realtime/internal/service"
	"github.com/billlzzz18/bl1nk-realtime/pkg/protocol"
)

func newRelayServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()

	h := hub.NewHub(hub.Config{})
	go h.Run()
	t.Cleanup(h.Stop)

	svc := service.NewRelayService(h, nil, nil)
	wsh := NewWSHandler(h, svc, hub.Config{}, "*")
	srv := httptest.NewServer(http.HandlerFunc(wsh.HandleWebSocket))
	t.Cleanup(srv.Close)
	return srv, h
}

func dialRelay(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	env, err := protocol.NewEnvelope(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

// readEvent reads frames until the wanted event arrives, skipping others.
func readEvent(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env protocol.Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %q", event)
		if env.Event == event {
			return env.Data
		}
	}
}

func join(t *testing.T, conn *websocket.Conn, userID, username string) {
	t.Helper()
	sendEvent(t, conn, protocol.EventUserJoin, protocol.UserJoinPayload{UserID: userID, Username: username})
}

func TestJoinBroadcastsPresenceSnapshot(t *testing.T) {
	srv, _ := newRelayServer(t)
	conn := dialRelay(t, srv)

	join(t, conn, "alice", "Alice")

	data := readEvent(t, conn, protocol.EventPresenceUpdate)
	var records []protocol.PresenceRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].UserID)
	assert.Equal(t, protocol.StatusOnline, records[0].Status)
}

func TestNotificationReachesEverySessionOfUser(t *testing.T) {
	srv, _ := newRelayServer(t)

	// Alice in two tabs, plus Bob as the sender.
	tab1 := dialRelay(t, srv)
	tab2 := dialRelay(t, srv)
	sender := dialRelay(t, srv)

	join(t, tab1, "alice", "Alice")
	readEvent(t, tab1, protocol.EventPresenceUpdate)
	join(t, tab2, "alice", "Alice")
	readEvent(t, tab2, protocol.EventPresenceUpdate)
	join(t, sender, "bob", "Bob")
	readEvent(t, sender, protocol.EventPresenceUpdate)

	sendEvent(t, sender, protocol.EventNotificationSend, protocol.NotificationSendPayload{
		UserID:       "alice",
		Notification: json.RawMessage(`{"title":"ping"}`),
	})

	for _, conn := range []*websocket.Conn{tab1, tab2} {
		data := readEvent(t, conn, protocol.EventNotification)
		var p protocol.NotificationPayload
		require.NoError(t, json.Unmarshal(data, &p))
		assert.JSONEq(t, `{"title":"ping"}`, string(p.Notification))
		assert.NotZero(t, p.Timestamp)
	}
}

func TestRoomJoinNotifiesMembers(t *testing.T) {
	srv, _ := newRelayServer(t)

	alice := dialRelay(t, srv)
	bob := dialRelay(t, srv)
	join(t, alice, "alice", "Alice")
	readEvent(t, alice, protocol.EventPresenceUpdate)
	join(t, bob, "bob", "Bob")
	readEvent(t, bob, protocol.EventPresenceUpdate)

	sendEvent(t, alice, protocol.EventRoomJoin, protocol.RoomPayload{RoomID: "doc-1"})
	readEvent(t, alice, protocol.EventRoomUserJoined)

	sendEvent(t, bob, protocol.EventRoomJoin, protocol.RoomPayload{RoomID: "doc-1"})

	// Both the existing member and the joiner hear about bob.
	for _, conn := range []*websocket.Conn{alice, bob} {
		data := readEvent(t, conn, protocol.EventRoomUserJoined)
		var p protocol.RoomMemberPayload
		require.NoError(t, json.Unmarshal(data, &p))
		assert.Equal(t, "doc-1", p.RoomID)
		require.NotNil(t, p.User)
		assert.Equal(t, "bob", p.User.UserID)
	}
}

func TestJoinWithoutUserIDIsRejected(t *testing.T) {
	srv, _ := newRelayServer(t)
	conn := dialRelay(t, srv)

	sendEvent(t, conn, protocol.EventUserJoin, protocol.UserJoinPayload{Username: "nobody"})

	data := readEvent(t, conn, protocol.EventError)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(data, &p))
	assert.NotEmpty(t, p.Message)
}

func TestUnknownEventReturnsError(t *testing.T) {
	srv, _ := newRelayServer(t)
	conn := dialRelay(t, srv)

	sendEvent(t, conn, "time:travel", struct{}{})

	data := readEvent(t, conn, protocol.EventError)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Contains(t, p.Message, "unknown event")
}

func TestDisconnectPurgesPresence(t *testing.T) {
	srv, _ := newRelayServer(t)

	alice := dialRelay(t, srv)
	bob := dialRelay(t, srv)
	join(t, alice, "alice", "Alice")
	readEvent(t, alice, protocol.EventPresenceUpdate)
	join(t, bob, "bob", "Bob")
	readEvent(t, bob, protocol.EventPresenceUpdate)

	require.NoError(t, alice.Close())

	// Bob eventually receives a snapshot without alice.
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env protocol.Envelope
		require.NoError(t, bob.ReadJSON(&env))
		if env.Event != protocol.EventPresenceUpdate {
			continue
		}
		var records []protocol.PresenceRecord
		require.NoError(t, json.Unmarshal(env.Data, &records))
		if len(records) == 1 {
			assert.Equal(t, "bob", records[0].UserID)
			return
		}
	}
}
