// Package pubsub is the optional Redis bridge between relay instances.
// It relays fan-out events (notifications, activity, messages) so a user
// connected to one instance still receives traffic originating on another.
// Presence and room membership stay instance-local; Redis carries events,
// never state.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BridgeMessage is the JSON envelope published on the bridge channel.
type BridgeMessage struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// Bridge publishes local fan-out events to the shared channel.
type Bridge struct {
	client     *redis.Client
	channel    string
	instanceID string
}

// NewBridge connects to Redis and returns a publisher. The connection is
// verified with a ping so a misconfigured bridge fails at startup rather
// than on first publish.
func NewBridge(client *redis.Client, channel, instanceID string) (*Bridge, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if channel == "" {
		channel = "relay:events"
	}
	return &Bridge{client: client, channel: channel, instanceID: instanceID}, nil
}

// Publish sends an event to the bridge channel.
func (b *Bridge) Publish(ctx context.Context, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal bridge payload: %w", err)
	}
	msg, err := json.Marshal(BridgeMessage{
		Origin: b.instanceID,
		Event:  event,
		Data:   raw,
	})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish bridge event: %w", err)
	}
	return nil
}
