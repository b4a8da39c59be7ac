package hub

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/billlzzz18/bl1nk-realtime/pkg/log"
)

// Client is one live WebSocket connection.
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	config Config
}

func NewClient(id string, hub *Hub, conn *websocket.Conn, cfg Config) *Client {
	return &Client{
		ID:     id,
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		config: cfg,
	}
}

// ReadPump reads frames from the socket and hands them to handler. It owns
// unregistration: when the read loop exits for any reason the client is
// removed from the hub and the connection closed.
func (c *Client) ReadPump(handler func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
		if onClose != nil {
			onClose(c)
		}
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.pongWait()))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.L().Warn().Err(err).Str(log.FieldConnID, c.ID).Msg("websocket read error")
			}
			break
		}
		handler(c, message)
	}
}

// WritePump drains the send queue onto the socket and keeps the connection
// alive with pings. One writer goroutine per connection; gorilla/websocket
// allows a single concurrent writer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingInterval())
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) pingInterval() time.Duration {
	if c.config.PingInterval <= 0 {
		return 25 * time.Second
	}
	return c.config.PingInterval
}

func (c *Client) pongWait() time.Duration {
	if c.config.PongWait <= 0 {
		return 60 * time.Second
	}
	return c.config.PongWait
}

func (c *Client) writeWait() time.Duration {
	if c.config.WriteWait <= 0 {
		return 10 * time.Second
	}
	return c.config.WriteWait
}
