package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"henkbot/pkg/message"
)

const defaultQueueSize = 256

// ErrQueueFull reports a message dropped because the writer fell behind.
var ErrQueueFull = errors.New("persistence queue is full")

// Async hands messages to a background writer so slow storage never stalls
// dispatch. Write failures are logged, never returned to the caller.
type Async struct {
	next Persister
	log  *slog.Logger

	queue chan message.Message
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the background writer in front of next.
func NewAsync(next Persister, size int, log *slog.Logger) *Async {
	if size <= 0 {
		size = defaultQueueSize
	}
	if log == nil {
		log = slog.Default()
	}

	a := &Async{
		next:  next,
		log:   log.With("component", "store.async"),
		queue: make(chan message.Message, size),
		done:  make(chan struct{}),
	}
	go a.run()

	return a
}

// Persist enqueues msg without blocking. A full queue drops the message.
func (a *Async) Persist(_ context.Context, msg message.Message) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- msg:
		return nil
	default:
		a.log.Warn("Dropping message record, writer is behind", "chat_id", msg.ChatID)
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)

	for msg := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.next.Persist(ctx, msg); err != nil {
			a.log.Warn("Failed to persist message", "chat_id", msg.ChatID, "error", err)
		}
		cancel()
	}
}

// Close stops accepting messages and waits until queued ones are written.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
}
