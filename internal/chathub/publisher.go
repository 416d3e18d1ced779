package chathub

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"roomchat/backend/internal/models"
)

const (
	relayPublishTimeout = 2 * time.Second
	relayQueueSize      = 256
)

// relayPublisher hands envelopes to the relay from a single goroutine. Room
// pipelines only enqueue, so a slow relay never holds up a room, and
// envelopes leave this instance in the order they were queued.
type relayPublisher struct {
	log   *slog.Logger
	relay Relay
	queue chan models.RelayEnvelope
	done  chan struct{}

	// mu guards closed; enqueue holds it shared so the queue is never
	// closed under a sender.
	mu     sync.RWMutex
	closed bool
}

func newRelayPublisher(log *slog.Logger, relay Relay, size int) *relayPublisher {
	p := &relayPublisher{
		log:   log,
		relay: relay,
		queue: make(chan models.RelayEnvelope, size),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue never blocks. It reports false when the queue is full or closed.
func (p *relayPublisher) enqueue(env models.RelayEnvelope) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- env:
		return true
	default:
		return false
	}
}

func (p *relayPublisher) run() {
	defer close(p.done)
	for env := range p.queue {
		p.publish(env)
	}
}

func (p *relayPublisher) publish(env models.RelayEnvelope) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("Recovered from panic in relay publisher",
				"room_id", env.RoomID, "panic", rec, "stack", string(debug.Stack()))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
	defer cancel()
	if err := p.relay.PublishEvent(ctx, env); err != nil {
		p.log.Warn("Failed to relay event", "room_id", env.RoomID, "event", env.Event, "error", err)
	}
}

// close stops accepting envelopes and waits until the queued ones have been
// published or ctx is done. It is safe to call more than once.
func (p *relayPublisher) close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
