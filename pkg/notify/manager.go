// Package notify is the client-side notification manager: a bounded,
// newest-first in-memory list with read state, synchronous subscriber
// callbacks, and independent toast/desktop/sound side effects.
package notify

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Kind classifies a notification.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// DefaultMaxNotifications bounds the retained list; the oldest entries are
// evicted silently once the bound is exceeded.
const DefaultMaxNotifications = 50

// DefaultDisplayDuration is used when Options.Duration is zero.
const DefaultDisplayDuration = 5 * time.Second

// Action is an optional interaction attached to a notification.
type Action struct {
	Label   string
	OnClick func()
}

// Notification is one entry in the manager's list. IDs are ULIDs:
// generation-ordered, time-based with a random suffix.
type Notification struct {
	ID        string
	Kind      Kind
	Title     string
	Message   string
	Timestamp int64 // milliseconds since epoch
	Read      bool
	Action    *Action
	Duration  time.Duration
}

// Options tune a single Show call.
type Options struct {
	Duration       time.Duration
	Action         *Action
	DisableDesktop bool
	DisableSound   bool
}

// Config configures a Manager.
type Config struct {
	Max    int // default DefaultMaxNotifications
	Sinks  Sinks
	Logger zerolog.Logger
}

type subscriber struct {
	id int
	fn func([]Notification)
}

// Manager owns the notification list. All methods are safe for concurrent
// use; every mutating operation invokes all current subscribers
// synchronously with a full copy of the updated list.
type Manager struct {
	mu            sync.Mutex
	notifications []Notification
	subscribers   []subscriber
	nextSubID     int

	max           int
	sinks         Sinks
	logger        zerolog.Logger
	desktopOK     bool
	enableSound   bool
	enableDesktop bool
}

// NewManager creates a manager. Desktop notification permission, if a
// desktop sink is present, is requested here exactly once.
func NewManager(cfg Config) *Manager {
	max := cfg.Max
	if max <= 0 {
		max = DefaultMaxNotifications
	}

	m := &Manager{
		max:           max,
		sinks:         cfg.Sinks,
		logger:        cfg.Logger,
		enableSound:   true,
		enableDesktop: true,
	}

	if cfg.Sinks.Desktop != nil {
		granted, err := cfg.Sinks.Desktop.RequestPermission()
		if err != nil {
			m.logger.Warn().Err(err).Msg("desktop notification permission request failed")
		}
		m.desktopOK = granted
	}

	return m
}

// Show records a notification at the head of the list, truncates past the
// bound, and fires the toast/desktop/sound side effects. Side effects are
// independent: one failing never stops the others. Returns the new id.
func (m *Manager) Show(kind Kind, title, message string, opts *Options) string {
	if opts == nil {
		opts = &Options{}
	}
	duration := opts.Duration
	if duration <= 0 {
		duration = DefaultDisplayDuration
	}

	n := Notification{
		ID:        newID(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
		Read:      false,
		Action:    opts.Action,
		Duration:  duration,
	}

	m.mu.Lock()
	m.notifications = append([]Notification{n}, m.notifications...)
	if len(m.notifications) > m.max {
		m.notifications = m.notifications[:m.max]
	}
	snapshot := m.snapshotLocked()
	subs := m.subscribersLocked()
	desktop := m.enableDesktop && m.desktopOK && !opts.DisableDesktop
	sound := m.enableSound && !opts.DisableSound
	m.mu.Unlock()

	if m.sinks.Toast != nil {
		if err := m.sinks.Toast.Show(n); err != nil {
			m.logger.Warn().Err(err).Str("id", n.ID).Msg("toast failed")
		}
	}
	if desktop && m.sinks.Desktop != nil {
		if err := m.sinks.Desktop.Show(n); err != nil {
			m.logger.Warn().Err(err).Str("id", n.ID).Msg("desktop notification failed")
		}
	}
	if sound && m.sinks.Sound != nil {
		if err := m.sinks.Sound.Play(kind); err != nil {
			m.logger.Warn().Err(err).Str("id", n.ID).Msg("notification sound failed")
		}
	}

	notifySubscribers(subs, snapshot)
	return n.ID
}

// Info, Success, Warning and Error are Show shorthands.
func (m *Manager) Info(title, message string, opts *Options) string {
	return m.Show(KindInfo, title, message, opts)
}

func (m *Manager) Success(title, message string, opts *Options) string {
	return m.Show(KindSuccess, title, message, opts)
}

func (m *Manager) Warning(title, message string, opts *Options) string {
	return m.Show(KindWarning, title, message, opts)
}

func (m *Manager) Error(title, message string, opts *Options) string {
	return m.Show(KindError, title, message, opts)
}

// MarkAsRead sets the read flag on one notification.
func (m *Manager) MarkAsRead(id string) {
	m.mu.Lock()
	changed := false
	for i := range m.notifications {
		if m.notifications[i].ID == id && !m.notifications[i].Read {
			m.notifications[i].Read = true
			changed = true
			break
		}
	}
	snapshot := m.snapshotLocked()
	subs := m.subscribersLocked()
	m.mu.Unlock()

	if changed {
		notifySubscribers(subs, snapshot)
	}
}

// MarkAllAsRead sets the read flag on every notification.
func (m *Manager) MarkAllAsRead() {
	m.mu.Lock()
	for i := range m.notifications {
		m.notifications[i].Read = true
	}
	snapshot := m.snapshotLocked()
	subs := m.subscribersLocked()
	m.mu.Unlock()

	notifySubscribers(subs, snapshot)
}

// Remove deletes one notification.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	kept := m.notifications[:0:0]
	for _, n := range m.notifications {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	m.notifications = kept
	snapshot := m.snapshotLocked()
	subs := m.subscribersLocked()
	m.mu.Unlock()

	notifySubscribers(subs, snapshot)
}

// RemoveAll clears the list.
func (m *Manager) RemoveAll() {
	m.mu.Lock()
	m.notifications = nil
	snapshot := m.snapshotLocked()
	subs := m.subscribersLocked()
	m.mu.Unlock()

	notifySubscribers(subs, snapshot)
}

// GetAll returns a copy of the list, newest first.
func (m *Manager) GetAll() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// GetUnread returns the unread entries, newest first.
func (m *Manager) GetUnread() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Notification
	for _, n := range m.notifications {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// GetUnreadCount returns the number of unread entries.
func (m *Manager) GetUnreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, n := range m.notifications {
		if !n.Read {
			count++
		}
	}
	return count
}

// Subscribe registers a callback invoked with the full updated list after
// every mutation, and returns its unsubscribe function. Subscribers always
// receive a consistent full snapshot, never deltas.
func (m *Manager) Subscribe(fn func([]Notification)) func() {
	m.mu.Lock()
	m.nextSubID++
	id := m.nextSubID
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subscribers {
			if s.id == id {
				m.subscribers = append(m.subscribers[:i:i], m.subscribers[i+1:]...)
				break
			}
		}
	}
}

// SetEnableSound toggles the sound side effect globally.
func (m *Manager) SetEnableSound(enable bool) {
	m.mu.Lock()
	m.enableSound = enable
	m.mu.Unlock()
}

// SetEnableDesktop toggles the desktop side effect globally. Permission is
// never re-requested.
func (m *Manager) SetEnableDesktop(enable bool) {
	m.mu.Lock()
	m.enableDesktop = enable
	m.mu.Unlock()
}

func (m *Manager) snapshotLocked() []Notification {
	return append([]Notification(nil), m.notifications...)
}

func (m *Manager) subscribersLocked() []subscriber {
	return append([]subscriber(nil), m.subscribers...)
}

func notifySubscribers(subs []subscriber, snapshot []Notification) {
	for _, s := range subs {
		s.fn(snapshot)
	}
}

// Monotonic entropy keeps ids strictly generation-ordered even within the
// same millisecond.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// Exhausted monotonic space in one millisecond; retake it.
		entropy = ulid.Monotonic(rand.Reader, 0)
		id = ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	}
	return id.String()
}
