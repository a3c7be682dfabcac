package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"henkbot/pkg/channel"
)

// supervisor keeps one adapter's event loop running. A failed or panicking
// loop is restarted with the same handler after a backoff; a loop that
// returns nil has finished and is not restarted.
type supervisor struct {
	adapter channel.Adapter
	handler channel.Handler
	backoff time.Duration
	log     *slog.Logger

	mu      sync.RWMutex
	current channelState
}

func newSupervisor(adapter channel.Adapter, handler channel.Handler, backoff time.Duration, log *slog.Logger) *supervisor {
	if log == nil {
		log = slog.Default()
	}

	return &supervisor{
		adapter: adapter,
		handler: handler,
		backoff: backoff,
		log:     log.With("component", "gateway.supervisor", "channel", adapter.Name()),
		current: channelState{Name: adapter.Name()},
	}
}

func (s *supervisor) run(ctx context.Context) error {
	for {
		s.update(func(state *channelState) {
			state.Running = true
		})
		s.log.Info("Channel starting")

		err := channel.Guard(func() error { return s.adapter.Run(ctx, s.handler) })

		s.update(func(state *channelState) {
			state.Running = false
			state.Error = errorString(err)
		})

		if ctx.Err() != nil {
			s.log.Info("Channel stopped")
			return nil
		}
		if err == nil {
			s.log.Info("Channel finished")
			return nil
		}

		restarts := 0
		s.update(func(state *channelState) {
			state.Restarts++
			restarts = state.Restarts
		})

		var panicErr *channel.PanicError
		if errors.As(err, &panicErr) {
			s.log.Error("Channel panicked, restarting", "panic", panicErr.Value, "stack", string(panicErr.Stack), "restarts", restarts, "backoff", s.backoff)
		} else {
			s.log.Error("Channel failed, restarting", "error", err, "restarts", restarts, "backoff", s.backoff)
		}

		if !sleepContext(ctx, s.backoff) {
			return nil
		}
	}
}

func (s *supervisor) update(fn func(*channelState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.current)
}

func (s *supervisor) state() channelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// sleepContext waits for d and reports false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
