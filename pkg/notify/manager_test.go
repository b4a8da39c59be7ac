package notify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToast struct {
	shown []Notification
	err   error
}

func (f *fakeToast) Show(n Notification) error {
	f.shown = append(f.shown, n)
	return f.err
}

type fakeDesktop struct {
	granted   bool
	permErr   error
	requested int
	shown     []Notification
	err       error
}

func (f *fakeDesktop) RequestPermission() (bool, error) {
	f.requested++
	return f.granted, f.permErr
}

func (f *fakeDesktop) Show(n Notification) error {
	f.shown = append(f.shown, n)
	return f.err
}

type fakeSound struct {
	played []Kind
	err    error
}

func (f *fakeSound) Play(kind Kind) error {
	f.played = append(f.played, kind)
	return f.err
}

func TestShowRecordsNotification(t *testing.T) {
	toast := &fakeToast{}
	m := NewManager(Config{Sinks: Sinks{Toast: toast}})

	id := m.Show(KindError, "Save failed", "Disk full", nil)
	require.NotEmpty(t, id)

	all := m.GetAll()
	require.Len(t, all, 1)
	assert.Equal(t, id, all[0].ID)
	assert.Equal(t, KindError, all[0].Kind)
	assert.Equal(t, "Save failed", all[0].Title)
	assert.False(t, all[0].Read)
	assert.Equal(t, DefaultDisplayDuration, all[0].Duration)

	require.Len(t, toast.shown, 1)
	assert.Equal(t, KindError, toast.shown[0].Kind)
}

func TestNewestFirstOrdering(t *testing.T) {
	m := NewManager(Config{})

	first := m.Info("first", "", nil)
	second := m.Info("second", "", nil)

	all := m.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, second, all[0].ID)
	assert.Equal(t, first, all[1].ID)
}

func TestListIsBoundedAndEvictsOldest(t *testing.T) {
	m := NewManager(Config{Max: 3})

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, m.Info(fmt.Sprintf("n%d", i), "", nil))
	}

	all := m.GetAll()
	require.Len(t, all, 3)
	// Newest three survive, oldest evicted silently.
	assert.Equal(t, ids[4], all[0].ID)
	assert.Equal(t, ids[3], all[1].ID)
	assert.Equal(t, ids[2], all[2].ID)
}

func TestIDsAreGenerationOrdered(t *testing.T) {
	m := NewManager(Config{})

	a := m.Info("a", "", nil)
	b := m.Info("b", "", nil)
	// ULIDs sort lexicographically by generation time.
	assert.LessOrEqual(t, a, b)
}

func TestMarkAsRead(t *testing.T) {
	m := NewManager(Config{})
	id := m.Warning("heads up", "", nil)
	m.Info("other", "", nil)

	m.MarkAsRead(id)

	assert.Equal(t, 1, m.GetUnreadCount())
	unread := m.GetUnread()
	require.Len(t, unread, 1)
	assert.Equal(t, "other", unread[0].Title)
}

func TestMarkAllAsRead(t *testing.T) {
	m := NewManager(Config{})
	for i := 0; i < 4; i++ {
		m.Info(fmt.Sprintf("n%d", i), "", nil)
	}
	require.Equal(t, 4, m.GetUnreadCount())

	m.MarkAllAsRead()
	assert.Equal(t, 0, m.GetUnreadCount())
	assert.Empty(t, m.GetUnread())
}

func TestRemoveAndRemoveAll(t *testing.T) {
	m := NewManager(Config{})
	id := m.Info("a", "", nil)
	m.Info("b", "", nil)

	m.Remove(id)
	require.Len(t, m.GetAll(), 1)

	m.RemoveAll()
	assert.Empty(t, m.GetAll())
	assert.Equal(t, 0, m.GetUnreadCount())
}

func TestSubscribersGetFullSnapshotSynchronously(t *testing.T) {
	m := NewManager(Config{})

	var calls [][]Notification
	unsubscribe := m.Subscribe(func(list []Notification) {
		calls = append(calls, list)
	})

	m.Info("a", "", nil)
	require.Len(t, calls, 1)
	assert.Len(t, calls[0], 1)

	m.MarkAllAsRead()
	require.Len(t, calls, 2)
	assert.True(t, calls[1][0].Read)

	unsubscribe()
	m.Info("b", "", nil)
	assert.Len(t, calls, 2)
}

func TestSideEffectFailuresAreIsolated(t *testing.T) {
	toast := &fakeToast{err: errors.New("toast broken")}
	desktop := &fakeDesktop{granted: true, err: errors.New("desktop broken")}
	sound := &fakeSound{err: errors.New("autoplay blocked")}
	m := NewManager(Config{Sinks: Sinks{Toast: toast, Desktop: desktop, Sound: sound}})

	m.Show(KindSuccess, "done", "", nil)

	// Every sink ran despite all of them failing, and the notification
	// was still recorded.
	assert.Len(t, toast.shown, 1)
	assert.Len(t, desktop.shown, 1)
	assert.Equal(t, []Kind{KindSuccess}, sound.played)
	assert.Len(t, m.GetAll(), 1)
}

func TestDesktopPermissionRequestedOnceAndRespected(t *testing.T) {
	desktop := &fakeDesktop{granted: false}
	m := NewManager(Config{Sinks: Sinks{Desktop: desktop}})
	assert.Equal(t, 1, desktop.requested)

	m.Info("a", "", nil)
	m.Info("b", "", nil)

	// Denied permission: never shown, never re-requested.
	assert.Empty(t, desktop.shown)
	assert.Equal(t, 1, desktop.requested)
}

func TestDisableOptionsSuppressSideEffects(t *testing.T) {
	desktop := &fakeDesktop{granted: true}
	sound := &fakeSound{}
	m := NewManager(Config{Sinks: Sinks{Desktop: desktop, Sound: sound}})

	m.Show(KindInfo, "quiet", "", &Options{DisableDesktop: true, DisableSound: true})
	assert.Empty(t, desktop.shown)
	assert.Empty(t, sound.played)

	m.SetEnableSound(false)
	m.SetEnableDesktop(false)
	m.Show(KindInfo, "muted", "", nil)
	assert.Empty(t, desktop.shown)
	assert.Empty(t, sound.played)
}
