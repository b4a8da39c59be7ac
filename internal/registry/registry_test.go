package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinLeave(t *testing.T) {
	r := New()

	require.True(t, r.Join("c1", "room-a"))
	require.True(t, r.Join("c2", "room-a"))
	assert.Equal(t, []string{"c1", "c2"}, r.Members("room-a"))

	// Rejoining is a no-op, no duplicates.
	assert.False(t, r.Join("c1", "room-a"))
	assert.Equal(t, []string{"c1", "c2"}, r.Members("room-a"))

	require.True(t, r.Leave("c1", "room-a"))
	assert.Equal(t, []string{"c2"}, r.Members("room-a"))

	// Leaving a room you are not in reports false.
	assert.False(t, r.Leave("c1", "room-a"))
	assert.False(t, r.Leave("c1", "no-such-room"))
}

func TestEmptyRoomIsDeletedImmediately(t *testing.T) {
	r := New()

	r.Join("c1", "room-a")
	require.Equal(t, []string{"room-a"}, r.Rooms())

	r.Leave("c1", "room-a")
	assert.Empty(t, r.Rooms())
	assert.Nil(t, r.Members("room-a"))

	// Recreated implicitly on next join.
	r.Join("c2", "room-a")
	assert.Equal(t, []string{"c2"}, r.Members("room-a"))
}

func TestConnectionInMultipleRooms(t *testing.T) {
	r := New()

	r.Join("c1", "room-a")
	r.Join("c1", "room-b")
	r.Join("c1", "room-c")
	r.Join("c2", "room-b")

	assert.True(t, r.IsMember("c1", "room-a"))
	assert.True(t, r.IsMember("c1", "room-b"))
	assert.True(t, r.IsMember("c1", "room-c"))
	assert.False(t, r.IsMember("c2", "room-a"))
}

func TestRemoveAllPurgesEveryMembership(t *testing.T) {
	r := New()

	r.Join("c1", "room-a")
	r.Join("c1", "room-b")
	r.Join("c2", "room-b")

	affected := r.RemoveAll("c1")
	// Exactly the rooms c1 belonged to, each once.
	require.Equal(t, []string{"room-a", "room-b"}, affected)

	// No stale ids anywhere.
	assert.False(t, r.IsMember("c1", "room-a"))
	assert.False(t, r.IsMember("c1", "room-b"))
	assert.Equal(t, []string{"c2"}, r.Members("room-b"))

	// room-a became empty and was deleted.
	assert.Equal(t, []string{"room-b"}, r.Rooms())

	// Removing a connection with no memberships affects nothing.
	assert.Empty(t, r.RemoveAll("c1"))
	assert.Empty(t, r.RemoveAll("ghost"))
}

func TestJoinLeaveSequenceMatchesMembership(t *testing.T) {
	r := New()

	ops := []struct {
		join   bool
		connID string
	}{
		{true, "a"}, {true, "b"}, {true, "c"},
		{false, "b"},
		{true, "d"}, {false, "a"}, {true, "b"},
	}
	for _, op := range ops {
		if op.join {
			r.Join(op.connID, "room")
		} else {
			r.Leave(op.connID, "room")
		}
	}

	// Membership is exactly those joined and not since left.
	assert.Equal(t, []string{"b", "c", "d"}, r.Members("room"))
}
