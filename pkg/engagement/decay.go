package engagement

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"
)

// DefaultDecaySchedule ticks the counters down once a minute.
const DefaultDecaySchedule = "@every 1m"

// Ticker drives State.Decay from a cron schedule, independent of message
// arrival.
type Ticker struct {
	scheduler *cron.Cron
}

// StartDecay schedules state decay and starts the clock.
func StartDecay(state *State, schedule string, log *slog.Logger) (*Ticker, error) {
	if state == nil {
		return nil, errors.New("engagement state is required")
	}
	if log == nil {
		log = slog.Default()
	}

	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = DefaultDecaySchedule
	}

	log = log.With("component", "engagement.decay")
	scheduler := cron.New()
	_, err := scheduler.AddFunc(schedule, func() {
		state.Decay()
		log.Debug("Engagement counters decayed")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid decay schedule %q: %w", schedule, err)
	}

	scheduler.Start()
	log.Info("Engagement decay started", "schedule", schedule)

	return &Ticker{scheduler: scheduler}, nil
}

// Stop halts the schedule and waits for a running tick to finish.
func (t *Ticker) Stop() {
	if t == nil {
		return
	}

	<-t.scheduler.Stop().Done()
}
