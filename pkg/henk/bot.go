package henk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"henkbot/pkg/bus"
	"henkbot/pkg/channel"
	"henkbot/pkg/engagement"
	"henkbot/pkg/message"
	"henkbot/pkg/registry"
	"henkbot/pkg/responses"
	"henkbot/pkg/store"
)

// CommandPrefix starts every slash command.
const CommandPrefix = "/"

var (
	// ErrDuplicateCommand reports a command keyword registered twice.
	ErrDuplicateCommand = errors.New("duplicate command")
	// ErrDuplicateCallback reports a callback prefix registered twice.
	ErrDuplicateCallback = errors.New("duplicate callback")
)

// CommandHandler answers a matched command. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, b *Bot, msg *message.Message) string

// CallbackHandler reacts to a matched callback query through side effects.
type CallbackHandler func(ctx context.Context, b *Bot, cb message.Callback)

// Rand picks response indexes. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Options configures a Bot.
type Options struct {
	// HomeChatID is where /say relays its text.
	HomeChatID int64
	// AdminIDs may use the admin-only commands.
	AdminIDs []int64

	Engagement *engagement.State
	Responses  *responses.Store
	// Persister receives every text message. Nil discards them.
	Persister store.Persister
	// Events receives routing outcomes. Nil disables publishing.
	Events *bus.EventBus
	// Rand picks replies. Nil uses the process-wide generator.
	Rand Rand
	// Shutdown is called by /quit.
	Shutdown func()
	// Modules are initialised in order; nil selects DefaultModules.
	Modules []Module

	Log *slog.Logger
}

// Bot is the shared context every handler receives: registries, engagement
// state and the guarded send path.
type Bot struct {
	sender     channel.Sender
	homeChatID int64
	admins     map[int64]struct{}

	engagement *engagement.State
	responses  *responses.Store
	persister  store.Persister
	events     *bus.EventBus
	rng        Rand
	shutdown   func()

	commands  *registry.Registry[CommandHandler]
	callbacks *registry.Registry[CallbackHandler]

	// sendMu allows one outbound call in flight at a time.
	sendMu     sync.Mutex
	lastSender atomic.Value

	root *slog.Logger
	log  *slog.Logger
}

// New builds a bot on top of sender, runs every module's initialisation and
// freezes the registries. A registration conflict fails here, before any
// event is dispatched.
func New(sender channel.Sender, opts Options) (*Bot, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if opts.Engagement == nil {
		return nil, errors.New("engagement state is required")
	}
	if opts.Responses == nil {
		return nil, errors.New("response store is required")
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	persister := opts.Persister
	if persister == nil {
		persister = store.Discard{}
	}
	rng := opts.Rand
	if rng == nil {
		rng = globalRand{}
	}

	admins := make(map[int64]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = struct{}{}
	}

	b := &Bot{
		sender:     sender,
		homeChatID: opts.HomeChatID,
		admins:     admins,
		engagement: opts.Engagement,
		responses:  opts.Responses,
		persister:  persister,
		events:     opts.Events,
		rng:        rng,
		shutdown:   opts.Shutdown,
		commands:   registry.New[CommandHandler]("command"),
		callbacks:  registry.New[CallbackHandler]("callback"),
		root:       log,
		log:        log.With("component", "henk.bot"),
	}
	b.lastSender.Store("")

	modules := opts.Modules
	if modules == nil {
		modules = DefaultModules()
	}
	for _, module := range modules {
		if err := module.Initialise(b); err != nil {
			return nil, fmt.Errorf("initialise module %s: %w", module.Name(), err)
		}
		if err := module.RegisterCommands(b); err != nil {
			return nil, fmt.Errorf("register module %s: %w", module.Name(), err)
		}
	}

	b.commands.Freeze()
	b.callbacks.Freeze()
	b.log.Debug("Bot ready", "commands", b.commands.Keys(), "callbacks", b.callbacks.Keys())

	return b, nil
}

// AddCommand registers keyword, matched exactly after the "/" prefix.
func (b *Bot) AddCommand(keyword string, handler CommandHandler) error {
	if handler == nil {
		return fmt.Errorf("command %q: handler is required", keyword)
	}
	if strings.HasPrefix(keyword, CommandPrefix) || strings.IndexFunc(keyword, unicode.IsSpace) >= 0 {
		return fmt.Errorf("command %q: keyword must be a single word without %q", keyword, CommandPrefix)
	}

	if err := b.commands.Register(keyword, handler); err != nil {
		if errors.Is(err, registry.ErrDuplicate) {
			return fmt.Errorf("%w: %w", ErrDuplicateCommand, err)
		}
		return err
	}

	return nil
}

// AddCallback registers a callback data prefix. Prefixes are tried in
// registration order, so specific prefixes must come before general ones.
func (b *Bot) AddCallback(prefix string, handler CallbackHandler) error {
	if handler == nil {
		return fmt.Errorf("callback %q: handler is required", prefix)
	}

	if err := b.callbacks.Register(prefix, handler); err != nil {
		if errors.Is(err, registry.ErrDuplicate) {
			return fmt.Errorf("%w: %w", ErrDuplicateCallback, err)
		}
		return err
	}

	return nil
}

// Commands returns the command keywords in registration order.
func (b *Bot) Commands() []string {
	return b.commands.Keys()
}

// Callbacks returns the callback prefixes in registration order.
func (b *Bot) Callbacks() []string {
	return b.callbacks.Keys()
}

// IsAdmin reports whether senderID is on the admin allow-list.
func (b *Bot) IsAdmin(senderID int64) bool {
	_, ok := b.admins[senderID]
	return ok
}

// AdminIDs returns the admin allow-list, sorted.
func (b *Bot) AdminIDs() []int64 {
	ids := make([]int64, 0, len(b.admins))
	for id := range b.admins {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// HomeChatID is the chat /say relays to.
func (b *Bot) HomeChatID() int64 {
	return b.homeChatID
}

// Engagement returns the shared engagement state.
func (b *Bot) Engagement() *engagement.State {
	return b.engagement
}

// Responses returns the response table store that /reload swaps.
func (b *Bot) Responses() *responses.Store {
	return b.responses
}

// Log returns the bot logger scoped to component.
func (b *Bot) Log(component string) *slog.Logger {
	return b.root.With("component", component)
}

// LastSender is the display name of whoever sent the latest text message.
func (b *Bot) LastSender() string {
	name, _ := b.lastSender.Load().(string)
	return name
}

// Pick chooses a reply from topic with the last sender's name filled in.
func (b *Bot) Pick(topic *responses.Topic) string {
	return b.responses.Current().Pick(topic, b.LastSender(), b.rng.IntN)
}

// RequestShutdown asks the process to stop.
func (b *Bot) RequestShutdown() {
	if b.shutdown == nil {
		b.log.Warn("Shutdown requested but no shutdown hook is set")
		return
	}

	b.log.Info("Shutdown requested")
	b.shutdown()
}

func (b *Bot) publish(ctx context.Context, eventType bus.EventType, chatID int64, payload map[string]string, err error) {
	if b.events == nil {
		return
	}

	event := bus.Event{Type: eventType, ChatID: chatID, Payload: payload}
	if err != nil {
		event.Error = err.Error()
	}
	b.events.Publish(ctx, event)
}
