package relayclient

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/billlzzz18/bl1nk-realtime/pkg/protocol"
)

// Identity is the authenticated user the tracker announces.
type Identity struct {
	UserID   string
	Username string
	Avatar   string
	Token    string
}

// IdentityProvider supplies the current identity. Returning ok=false means
// no user is signed in; the tracker then stays idle, which is not an error.
type IdentityProvider func() (Identity, bool)

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	HeartbeatInterval time.Duration // default 30s
	Logger            zerolog.Logger
}

const defaultHeartbeatInterval = 30 * time.Second

// Tracker announces this client's presence and mirrors the relay's
// presence snapshot. Status follows page visibility: hidden reports
// "away", visible reports "online". The periodic heartbeat and SetHidden
// apply the same transition, so the two sources are idempotent and
// order-independent.
type Tracker struct {
	transport Transport
	provider  IdentityProvider
	interval  time.Duration
	logger    zerolog.Logger

	mu     sync.RWMutex
	users  map[string]protocol.PresenceRecord
	hidden bool
	active bool
	unsub  func()
	stopCh chan struct{} // fresh per activation
}

// NewTracker creates a tracker over transport. Call Start to activate it.
func NewTracker(transport Transport, provider IdentityProvider, cfg TrackerConfig) *Tracker {
	interval := cfg.HeartbeatInterval
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &Tracker{
		transport: transport,
		provider:  provider,
		interval:  interval,
		logger:    cfg.Logger,
		users:     make(map[string]protocol.PresenceRecord),
	}
}

// Start announces the identity and begins the heartbeat. Without an
// identity the tracker stays idle and Start returns false; this is a
// no-op, not a failure. A stopped tracker can be started again; each
// activation gets its own heartbeat and subscription.
func (t *Tracker) Start() bool {
	identity, ok := t.provider()
	if !ok {
		t.logger.Debug().Msg("no identity available, presence tracker idle")
		return false
	}

	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		return true
	}
	t.active = true
	t.stopCh = make(chan struct{})
	stopCh := t.stopCh
	t.unsub = t.transport.On(protocol.EventPresenceUpdate, t.onSnapshot)
	t.mu.Unlock()

	t.transport.Send(protocol.EventUserJoin, protocol.UserJoinPayload{
		UserID:   identity.UserID,
		Username: identity.Username,
		Avatar:   identity.Avatar,
		Token:    identity.Token,
	})
	t.announce(protocol.StatusOnline)

	go t.heartbeat(stopCh)
	return true
}

// heartbeat runs for one activation; stopCh is that activation's stop
// channel, so a restart never inherits a closed one.
func (t *Tracker) heartbeat(stopCh <-chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			t.announce(t.visibilityStatus())
		}
	}
}

// SetHidden records page visibility and announces the matching status
// immediately, independent of the heartbeat timer. Last write wins.
func (t *Tracker) SetHidden(hidden bool) {
	t.mu.Lock()
	t.hidden = hidden
	active := t.active
	t.mu.Unlock()

	if active {
		t.announce(t.visibilityStatus())
	}
}

// UpdateStatus announces an explicit status change (for example "busy").
// The next heartbeat reverts to the visibility-derived status.
func (t *Tracker) UpdateStatus(status protocol.Status) {
	if !status.Valid() {
		return
	}
	t.announce(status)
}

// OnlineUsers returns the latest presence snapshot received from the
// relay, keyed client-side by user id.
func (t *Tracker) OnlineUsers() []protocol.PresenceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]protocol.PresenceRecord, 0, len(t.users))
	for _, rec := range t.users {
		out = append(out, rec)
	}
	return out
}

// Stop announces offline and cancels the heartbeat and subscription.
// Safe to call more than once; teardown runs exactly once per activation
// even under rapid start/stop cycles, and the tracker can be started
// again afterwards.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	unsub := t.unsub
	t.unsub = nil
	stopCh := t.stopCh
	t.mu.Unlock()

	t.announce(protocol.StatusOffline)
	close(stopCh)
	if unsub != nil {
		unsub()
	}
}

func (t *Tracker) announce(status protocol.Status) {
	// Send failures are swallowed by the transport contract; presence is
	// re-announced on the next heartbeat anyway.
	t.transport.Send(protocol.EventPresenceUpdate, protocol.PresenceUpdatePayload{
		Status:    status,
		Timestamp: protocol.Now(),
	})
}

func (t *Tracker) visibilityStatus() protocol.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.hidden {
		return protocol.StatusAway
	}
	return protocol.StatusOnline
}

func (t *Tracker) onSnapshot(data json.RawMessage) {
	var records []protocol.PresenceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.logger.Warn().Err(err).Msg("invalid presence snapshot")
		return
	}

	users := make(map[string]protocol.PresenceRecord, len(records))
	for _, rec := range records {
		users[rec.UserID] = rec
	}

	t.mu.Lock()
	t.users = users
	t.mu.Unlock()
}
