package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"henkbot/pkg/bus"
	"henkbot/pkg/channel"
	"henkbot/pkg/config"
	"henkbot/pkg/engagement"
	"henkbot/pkg/gateway"
	"henkbot/pkg/henk"
	"henkbot/pkg/responses"
	"henkbot/pkg/store"
)

// app is the bot with everything it owns, built once per process.
type app struct {
	cfg        *config.Config
	bot        *henk.Bot
	engagement *engagement.State
	responses  *responses.Store
	events     *bus.EventBus

	closers []func()
}

type appOptions struct {
	// Persist enables the message log from storage.messages_path.
	Persist bool
	// Shutdown is what /quit calls.
	Shutdown func()
}

func newApp(cfg *config.Config, sender channel.Sender, log *slog.Logger, opts appOptions) (*app, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = slog.Default()
	}

	state, err := engagement.New(engagement.Config{
		EngageProbability: cfg.Bot.EngageProbability,
		DecayStep:         cfg.Bot.DecayStep,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("configure engagement: %w", err)
	}

	table, err := responses.NewStore(cfg.Bot.ResponsesPath)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}

	a := &app{
		cfg:        cfg,
		engagement: state,
		responses:  table,
		events:     bus.NewEventBus(),
	}
	a.closers = append(a.closers, a.events.Close)

	persister, err := a.persister(opts.Persist, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	bot, err := henk.New(sender, henk.Options{
		HomeChatID: cfg.Bot.HomeChatID,
		AdminIDs:   cfg.Bot.AdminIDs,
		Engagement: state,
		Responses:  table,
		Persister:  persister,
		Events:     a.events,
		Shutdown:   opts.Shutdown,
		Log:        log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.bot = bot

	return a, nil
}

func (a *app) persister(enabled bool, log *slog.Logger) (store.Persister, error) {
	path := strings.TrimSpace(a.cfg.Storage.MessagesPath)
	if !enabled || path == "" {
		return store.Discard{}, nil
	}

	jsonl, err := store.NewJSONL(path)
	if err != nil {
		return nil, err
	}
	async := store.NewAsync(jsonl, a.cfg.Storage.QueueSize, log)

	// Drain the queue before the file is closed.
	a.closers = append(a.closers, func() {
		async.Close()
		if err := jsonl.Close(); err != nil {
			log.Warn("Failed to close message log", "path", path, "error", err)
		}
	})

	return async, nil
}

// service wraps the bot in a supervised gateway around adapter.
func (a *app) service(adapter channel.Adapter, disableHealth bool, log *slog.Logger) (*gateway.Service, error) {
	return gateway.NewService(gateway.Options{
		Gateway:       a.cfg.Gateway,
		Adapter:       adapter,
		Handler:       a.bot,
		Engagement:    a.engagement,
		DecaySchedule: a.cfg.Bot.DecaySchedule,
		Events:        a.events,
		DisableHealth: disableHealth,
		Log:           log,
	})
}

// Close releases what newApp opened, last opened first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// nopSender accepts every outbound call without delivering it.
type nopSender struct{}

func (nopSender) Send(_ context.Context, chatID int64, _ string) (channel.MessageHandle, error) {
	return channel.MessageHandle{ChatID: chatID}, nil
}

func (nopSender) SendKeyboard(_ context.Context, chatID int64, _ string, _ []channel.Button) (channel.MessageHandle, error) {
	return channel.MessageHandle{ChatID: chatID}, nil
}

func (nopSender) EditText(context.Context, channel.MessageHandle, string) error { return nil }

func (nopSender) AnswerCallback(context.Context, string, string) error { return nil }
