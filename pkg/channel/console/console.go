package console

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"henkbot/pkg/channel"
	"henkbot/pkg/message"
)

var _ channel.Adapter = (*Adapter)(nil)

const channelName = "console"

// Options sets the identity the operator chats as.
type Options struct {
	ChatID     int64
	ChatType   string
	SenderID   int64
	SenderName string
}

// Adapter is a local terminal chat with the bot. Everything typed is sent
// as a message in one chat; bot replies, keyboards and edits are rendered
// in the transcript.
type Adapter struct {
	opts Options
	log  *slog.Logger

	nextMessageID atomic.Int64
	nextUpdateID  atomic.Int64

	mu      sync.Mutex
	program *tea.Program
	pending []entry
}

func NewAdapter(opts Options, log *slog.Logger) *Adapter {
	if opts.ChatID == 0 {
		opts.ChatID = 1
	}
	if strings.TrimSpace(opts.ChatType) == "" {
		opts.ChatType = "group"
	}
	if strings.TrimSpace(opts.SenderName) == "" {
		opts.SenderName = "operator"
	}
	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		opts: opts,
		log:  log.With("component", "channel.console"),
	}
}

func (a *Adapter) Name() string {
	return channelName
}

// Run shows the console until the operator quits or ctx ends. A handler
// panic closes the console and is returned.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	// Handlers are cancelled before the lanes drain.
	runCtx, cancel := context.WithCancel(ctx)
	lanes := channel.NewLanes()
	defer func() {
		cancel()
		lanes.Close()
	}()

	m := newModel(runCtx, a, handler, lanes)
	m.entries = append(m.entries, a.drainPending()...)

	program := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	a.setProgram(program)
	defer a.setProgram(nil)

	a.log.Info("Console channel started", "chat_id", a.opts.ChatID, "sender_id", a.opts.SenderID)

	final, err := program.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	if fm, ok := final.(*model); ok && fm.fatal != nil {
		return fm.fatal
	}

	return nil
}

func (a *Adapter) setProgram(program *tea.Program) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.program = program
}

func (a *Adapter) drainPending() []entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	pending := a.pending
	a.pending = nil
	return pending
}

// deliver hands msg to the running program. Bot messages sent while no
// console is open are kept and shown when it opens.
func (a *Adapter) deliver(msg tea.Msg) {
	a.mu.Lock()
	program := a.program
	if program == nil {
		if added, ok := msg.(botMessageMsg); ok {
			a.pending = append(a.pending, added.entry)
		}
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	program.Send(msg)
}

func (a *Adapter) Send(_ context.Context, chatID int64, text string) (channel.MessageHandle, error) {
	id := int(a.nextMessageID.Add(1))
	a.deliver(botMessageMsg{entry: entry{id: id, chatID: chatID, role: roleBot, text: text}})
	return channel.MessageHandle{ChatID: chatID, MessageID: id}, nil
}

func (a *Adapter) SendKeyboard(_ context.Context, chatID int64, text string, buttons []channel.Button) (channel.MessageHandle, error) {
	id := int(a.nextMessageID.Add(1))
	a.deliver(botMessageMsg{entry: entry{id: id, chatID: chatID, role: roleBot, text: text, buttons: buttons}})
	return channel.MessageHandle{ChatID: chatID, MessageID: id}, nil
}

func (a *Adapter) EditText(_ context.Context, handle channel.MessageHandle, text string) error {
	a.deliver(editMessageMsg{handle: handle, text: text})
	return nil
}

func (a *Adapter) AnswerCallback(_ context.Context, _ string, text string) error {
	if strings.TrimSpace(text) != "" {
		a.deliver(noticeMsg{text: text})
	}
	return nil
}

// operatorEvent builds the raw event for a line the operator typed.
func (a *Adapter) operatorEvent(text string, contentType string) (message.RawEvent, int) {
	id := int(a.nextMessageID.Add(1))
	raw := message.RawEvent{
		UpdateID:    int(a.nextUpdateID.Add(1)),
		MessageID:   id,
		ChatID:      a.opts.ChatID,
		ChatType:    a.opts.ChatType,
		ContentType: contentType,
		From:        &message.Sender{ID: a.opts.SenderID, FirstName: a.opts.SenderName},
		Date:        time.Now().Unix(),
	}
	if contentType == message.ContentTypeText {
		raw.Text = text
	}

	return raw, id
}

func (a *Adapter) operatorCallback(target entry, button channel.Button) message.Callback {
	return message.Callback{
		ID:        uuid.NewString(),
		Data:      button.Data,
		FromID:    a.opts.SenderID,
		FromName:  a.opts.SenderName,
		ChatID:    target.chatID,
		MessageID: target.id,
	}
}

// dispatch runs fn on the chat's lane and reports back to the model when
// it is done.
func (a *Adapter) dispatch(lanes *channel.Lanes, chatID int64, fn func() error) bool {
	return lanes.Submit(chatID, func() {
		err := channel.Guard(fn)

		var panicErr *channel.PanicError
		switch {
		case err == nil:
		case errors.As(err, &panicErr):
			a.log.Error("Handler panicked", "panic", panicErr.Value, "stack", string(panicErr.Stack))
		default:
			a.log.Warn("Dropped console event", "error", err)
		}

		a.deliver(handledMsg{err: err})
	})
}
