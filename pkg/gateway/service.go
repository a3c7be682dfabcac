package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"henkbot/pkg/bus"
	"henkbot/pkg/channel"
	"henkbot/pkg/config"
	"henkbot/pkg/engagement"
)

const (
	defaultHealthHost = "127.0.0.1"
	defaultHealthPort = 18790
)

// Options wires a Service.
type Options struct {
	Gateway       config.GatewayConfig
	Adapter       channel.Adapter
	Handler       channel.Handler
	Engagement    *engagement.State
	DecaySchedule string
	// Events, when set, feeds the per-type counters shown by the status endpoints.
	Events *bus.EventBus
	// DisableHealth skips the HTTP status server.
	DisableHealth bool
	Log           *slog.Logger
}

// Service runs one channel adapter under supervision, drives engagement
// decay and serves health endpoints.
type Service struct {
	cfg           config.GatewayConfig
	log           *slog.Logger
	engagement    *engagement.State
	decaySchedule string
	events        *bus.EventBus
	healthEnabled bool
	supervisor    *supervisor

	mu        sync.RWMutex
	startedAt time.Time
	counter   *bus.Counter
}

type channelState struct {
	Name     string `json:"name"`
	Running  bool   `json:"running"`
	Restarts int    `json:"restarts"`
	Error    string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string              `json:"status"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Channel       channelState        `json:"channel"`
	Engagement    engagement.Snapshot `json:"engagement"`
	Events        map[string]int64    `json:"events,omitempty"`
}

func NewService(opts Options) (*Service, error) {
	if opts.Adapter == nil {
		return nil, errors.New("channel adapter is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("handler is required")
	}
	if opts.Engagement == nil {
		return nil, errors.New("engagement state is required")
	}
	if opts.Gateway.RestartBackoffSeconds < 0 {
		return nil, errors.New("restart backoff must not be negative")
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	backoff := time.Duration(opts.Gateway.RestartBackoffSeconds) * time.Second

	return &Service{
		cfg:           opts.Gateway,
		log:           log.With("component", "gateway.service"),
		engagement:    opts.Engagement,
		decaySchedule: opts.DecaySchedule,
		events:        opts.Events,
		healthEnabled: !opts.DisableHealth,
		supervisor:    newSupervisor(opts.Adapter, opts.Handler, backoff, log),
	}, nil
}

// Run blocks until ctx ends, the adapter finishes on its own, or the status
// server fails. Adapter failures restart the adapter after the configured
// backoff.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	if s.events != nil {
		s.counter = bus.NewCounter(runCtx, s.events)
	}
	s.mu.Unlock()

	ticker, err := engagement.StartDecay(s.engagement, s.decaySchedule, s.log)
	if err != nil {
		return err
	}
	defer ticker.Stop()

	serverErrors := make(chan error, 1)
	serverDone := make(chan struct{})
	if s.healthEnabled {
		go func() {
			defer close(serverDone)
			s.runHealthServer(runCtx, serverErrors)
		}()
	} else {
		close(serverDone)
	}

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- s.supervisor.run(runCtx)
	}()

	select {
	case err := <-loopErr:
		cancel()
		<-serverDone
		return err
	case err := <-serverErrors:
		cancel()
		<-loopErr
		return err
	}
}

func (s *Service) runHealthServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	addr := host + ":" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	startedAt := s.startedAt
	counter := s.counter
	s.mu.RUnlock()

	uptime := int64(0)
	if !startedAt.IsZero() {
		uptime = int64(time.Since(startedAt).Seconds())
	}

	var events map[string]int64
	if counter != nil {
		counts := counter.Counts()
		events = make(map[string]int64, len(counts))
		for eventType, count := range counts {
			events[string(eventType)] = count
		}
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Channel:       s.supervisor.state(),
		Engagement:    s.engagement.Snapshot(),
		Events:        events,
	}
}

// isReady reports whether the adapter is currently running.
func (s *Service) isReady() bool {
	return s.supervisor.state().Running
}
