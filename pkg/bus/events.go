package bus

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMessageReceived   EventType = "message_received"
	EventNonText           EventType = "non_text"
	EventMalformed         EventType = "malformed_event"
	EventCommandHandled    EventType = "command_handled"
	EventCommandUnknown    EventType = "command_unknown"
	EventEngagementReplied EventType = "engagement_replied"
	EventEngagementSkipped EventType = "engagement_skipped"
	EventCallbackHandled   EventType = "callback_handled"
	EventCallbackUnmatched EventType = "callback_unmatched"
	EventReplyFailed       EventType = "reply_failed"
)

// Event describes one routing outcome of the dispatcher.
type Event struct {
	ID      string            `json:"id"`
	Type    EventType         `json:"type"`
	At      time.Time         `json:"at"`
	ChatID  int64             `json:"chat_id,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Publish delivers event to every subscriber with buffer space and reports
// whether the bus accepted it. A nil bus accepts nothing.
func (b *EventBus) Publish(ctx context.Context, event Event) bool {
	if b == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if event.ID == "" {
		event.ID = "evt_" + uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	default:
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop instead of blocking the dispatcher on slow subscribers.
		}
	}

	return true
}

// Counter tallies events per type from one subscription.
type Counter struct {
	mu     sync.RWMutex
	counts map[EventType]int64
	done   chan struct{}
}

// NewCounter subscribes to b and counts events until ctx ends or b closes.
func NewCounter(ctx context.Context, b *EventBus) *Counter {
	c := &Counter{
		counts: make(map[EventType]int64),
		done:   make(chan struct{}),
	}

	events, _ := b.Subscribe(ctx, defaultBufferSize)
	go func() {
		defer close(c.done)
		for event := range events {
			c.mu.Lock()
			c.counts[event.Type]++
			c.mu.Unlock()
		}
	}()

	return c
}

// Counts returns a copy of the tallies.
func (c *Counter) Counts() map[EventType]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.counts)
}

// Done closes when the counter's subscription has ended.
func (c *Counter) Done() <-chan struct{} {
	return c.done
}
