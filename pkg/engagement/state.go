package engagement

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"sync"
)

const (
	// activeLeniency is how many replies a topic gets for free while the bot
	// is already in conversation.
	activeLeniency = 3
	// idleLeniency is the same allowance for the unconditional coin flip.
	idleLeniency = 1
)

// Rand is the randomness source for coin flips. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Config holds the tunable parameters of the state machine.
type Config struct {
	// EngageProbability is the chance the bot stays active after it spoke.
	EngageProbability float64
	// DecayStep is subtracted from every topic counter on each tick.
	DecayStep int
}

// Validate rejects parameters outside their domain.
func (c Config) Validate() error {
	if math.IsNaN(c.EngageProbability) || c.EngageProbability < 0 || c.EngageProbability > 1 {
		return fmt.Errorf("engage probability %v must be within [0, 1]", c.EngageProbability)
	}
	if c.DecayStep < 0 {
		return errors.New("decay step must not be negative")
	}

	return nil
}

// Snapshot is a point-in-time copy of the state.
type Snapshot struct {
	Active bool           `json:"active"`
	Counts map[string]int `json:"counts"`
}

// State tracks whether the bot is engaged in conversation and how often it
// recently answered each topic unprompted. All methods are safe for
// concurrent use.
type State struct {
	cfg Config
	rng Rand

	mu     sync.Mutex
	active bool
	counts map[string]int
}

// New returns the initial state: inactive, no counters. A nil rng uses the
// process-wide generator.
func New(cfg Config, rng Rand) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = globalRand{}
	}

	return &State{
		cfg:    cfg,
		rng:    rng,
		counts: make(map[string]int),
	}, nil
}

// Consider decides whether an unsolicited trigger on topic should be
// answered. always marks the always-respond alias, which is answered
// regardless of the counters. A positive decision counts the reply and marks
// the bot active.
func (s *State) Consider(topic string, always bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, ok := s.counts[topic]
	if !ok {
		s.counts[topic] = 0
	}

	if !s.decideLocked(always, count) {
		return false
	}

	s.counts[topic] = count + 1
	s.active = true
	return true
}

func (s *State) decideLocked(always bool, count int) bool {
	if always {
		return true
	}
	if s.active && s.flip(replyChance(count, activeLeniency)) {
		return true
	}

	return s.flip(replyChance(count, idleLeniency))
}

func (s *State) flip(p float64) bool {
	return s.rng.Float64() < p
}

// ReplyProbability is the chance Consider would answer a trigger on topic
// right now, without flipping any coin or changing state.
func (s *State) ReplyProbability(topic string, always bool) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if always {
		return 1
	}

	count := s.counts[topic]
	miss := 1 - replyChance(count, idleLeniency)
	if s.active {
		miss *= 1 - replyChance(count, activeLeniency)
	}

	return 1 - miss
}

// replyChance is 2^-max(count-leniency, 0).
func replyChance(count int, leniency int) float64 {
	return math.Exp2(-float64(max(count-leniency, 0)))
}

// OnSend flips the engagement coin after the bot spoke and returns the new
// active flag.
func (s *State) OnSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = s.flip(s.cfg.EngageProbability)
	return s.active
}

// Deactivate clears the active flag.
func (s *State) Deactivate() {
	s.SetActive(false)
}

// SetActive forces the active flag.
func (s *State) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = active
}

// Decay lowers every topic counter by the configured step, floored at zero.
func (s *State) Decay() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for topic, count := range s.counts {
		s.counts[topic] = max(count-s.cfg.DecayStep, 0)
	}
}

// Active reports whether the bot is currently engaged.
func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

// Count returns the reply counter of topic.
func (s *State) Count(topic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counts[topic]
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{Active: s.active, Counts: maps.Clone(s.counts)}
}
