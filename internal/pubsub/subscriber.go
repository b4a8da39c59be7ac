package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/billlzzz18/bl1nk-realtime/pkg/log"
)

// RemoteHandler applies an event that arrived from another relay instance.
type RemoteHandler interface {
	ApplyRemote(event string, data json.RawMessage)
}

// Subscriber listens on the bridge channel and re-fans-out remote events
// locally. A subscriber-mode Redis connection cannot run other commands,
// so it takes its own client.
type Subscriber struct {
	client     *redis.Client
	channel    string
	handler    RemoteHandler
	instanceID string
	doneCh     chan struct{}
}

func NewSubscriber(client *redis.Client, channel string, handler RemoteHandler, instanceID string) *Subscriber {
	if channel == "" {
		channel = "relay:events"
	}
	return &Subscriber{
		client:     client,
		channel:    channel,
		handler:    handler,
		instanceID: instanceID,
		doneCh:     make(chan struct{}),
	}
}

// Done returns a channel that is closed when Run exits.
func (s *Subscriber) Done() <-chan struct{} { return s.doneCh }

// Run subscribes and dispatches until ctx is done, reconnecting on receive
// errors.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := s.runSubscription(ctx); err != nil && ctx.Err() == nil {
				log.L().Warn().Err(err).Msg("bridge subscription error, reconnecting in 2s")
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Second):
					continue
				}
			}
			return
		}
	}
}

func (s *Subscriber) runSubscription(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handleMessage(msg.Payload)
		}
	}
}

func (s *Subscriber) handleMessage(payload string) {
	var msg BridgeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		log.L().Warn().Err(err).Msg("bridge: invalid payload")
		return
	}
	// Skip events this instance published itself; they were already
	// fanned out locally.
	if msg.Origin != "" && msg.Origin == s.instanceID {
		return
	}
	s.handler.ApplyRemote(msg.Event, msg.Data)
}
