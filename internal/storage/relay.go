package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"roomchat/backend/internal/models"
)

// BroadcastChannel is the Redis Pub/Sub channel shared by all server instances.
const BroadcastChannel = "chat:broadcast"

var errRelayDisabled = errors.New("redis relay is not configured")

// PublishEvent publishes a room event for the other server instances.
func (s *Service) PublishEvent(ctx context.Context, env models.RelayEnvelope) error {
	if s.Redis == nil {
		return errRelayDisabled
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, BroadcastChannel, payload).Err()
}

// SubscribeEvents listens on the broadcast channel until ctx is cancelled.
// The returned channel is closed when the subscription ends.
func (s *Service) SubscribeEvents(ctx context.Context) (<-chan models.RelayEnvelope, error) {
	if s.Redis == nil {
		return nil, errRelayDisabled
	}

	pubsub := s.Redis.Subscribe(ctx, BroadcastChannel)
	// Wait for the subscription confirmation so that no publish is missed
	// between returning and the first read.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", BroadcastChannel, err)
	}

	out := make(chan models.RelayEnvelope, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env models.RelayEnvelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					s.Log.Warn("Error unmarshalling Redis message", "error", err)
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
