// Package relayclient is the Go client for the realtime relay: a
// fire-and-forget transport over WebSocket plus a presence tracker built
// on top of it.
//
// The transport deliberately offers at-most-once semantics: Send reports
// whether the frame was likely delivered and never queues or retries.
// State changes made while disconnected are lost; callers re-announce
// their state when the "connection" event reports a reconnect.
package relayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/billlzzz18/bl1nk-realtime/pkg/protocol"
)

// Transport is the send/subscribe surface the presence tracker and other
// consumers depend on. *Client implements it.
type Transport interface {
	Send(event string, payload any) bool
	On(event string, handler func(json.RawMessage)) (unsubscribe func())
	IsConnected() bool
}

// Config configures a Client.
type Config struct {
	URL                  string // ws:// or wss:// endpoint
	MaxReconnectAttempts int    // default 5
	ReconnectDelay       time.Duration
	HandshakeTimeout     time.Duration
	Logger               zerolog.Logger
}

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectDelay       = time.Second
	defaultHandshakeTimeout     = 10 * time.Second
)

type handlerEntry struct {
	id int
	fn func(json.RawMessage)
}

// Client is a WebSocket connection to the relay.
type Client struct {
	cfg Config

	connMu  sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[string][]handlerEntry
	nextID     int

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a client. Call Connect to establish the connection.
func New(cfg Config) *Client {
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Client{
		cfg:      cfg,
		handlers: make(map[string][]handlerEntry),
		closed:   make(chan struct{}),
	}
}

// Connect dials the relay and starts the read loop. On read failure the
// client reconnects with a bounded number of attempts; once exhausted it
// stays disconnected until Connect is called again.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.emitLocal(protocol.EventConnection, protocol.ConnectionPayload{Status: "connected"})
	go c.readLoop(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}
	return conn, nil
}

// Close terminates the connection and stops reconnection. The client
// cannot be reused after Close.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected reflects live socket state only, not application-layer
// session state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil
}

// Send transmits one event fire-and-forget. It returns whether the frame
// was likely delivered: false when disconnected (the call is dropped with
// a local warning, never queued) or on a write error.
func (c *Client) Send(event string, payload any) bool {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		c.cfg.Logger.Warn().Str("event", event).Msg("not connected, message not sent")
		return false
	}

	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		c.cfg.Logger.Error().Err(err).Str("event", event).Msg("failed to marshal payload")
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(env); err != nil {
		c.cfg.Logger.Warn().Err(err).Str("event", event).Msg("write failed")
		return false
	}
	return true
}

// On registers a handler for an event and returns its unsubscribe
// function. Multiple handlers per event are invoked in registration order.
func (c *Client) On(event string, handler func(json.RawMessage)) func() {
	c.handlersMu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[event] = append(c.handlers[event], handlerEntry{id: id, fn: handler})
	c.handlersMu.Unlock()

	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		entries := c.handlers[event]
		for i, e := range entries {
			if e.id == id {
				c.handlers[event] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.connMu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.connMu.Unlock()
			conn.Close()

			select {
			case <-c.closed:
				return
			default:
			}

			c.emitLocal(protocol.EventConnection, protocol.ConnectionPayload{Status: "disconnected", Reason: err.Error()})
			c.reconnect()
			return
		}
		c.dispatch(env.Event, env.Data)
	}
}

// reconnect retries the dial a bounded number of times with linear
// backoff. There is no message replay: anything sent while disconnected
// was dropped, so consumers listening on the "connection" event must
// re-announce their state after a successful reconnect.
func (c *Client) reconnect() {
	for attempt := 1; attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		select {
		case <-c.closed:
			return
		case <-time.After(time.Duration(attempt) * c.cfg.ReconnectDelay):
		}

		c.cfg.Logger.Info().
			Int("attempt", attempt).
			Int("max", c.cfg.MaxReconnectAttempts).
			Msg("reconnecting")

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			c.cfg.Logger.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			continue
		}

		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()

		c.emitLocal(protocol.EventConnection, protocol.ConnectionPayload{Status: "connected"})
		go c.readLoop(conn)
		return
	}
	c.cfg.Logger.Warn().Msg("reconnect attempts exhausted, staying disconnected")
}

func (c *Client) dispatch(event string, data json.RawMessage) {
	c.handlersMu.RLock()
	entries := append([]handlerEntry(nil), c.handlers[event]...)
	c.handlersMu.RUnlock()

	// Entries are kept in registration order.
	for _, e := range entries {
		e.fn(data)
	}
}

func (c *Client) emitLocal(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.dispatch(event, raw)
}
