package console

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"henkbot/pkg/channel"
	"henkbot/pkg/message"
)

type recordingHandler struct {
	mu        sync.Mutex
	events    []message.RawEvent
	callbacks []message.Callback
}

func (h *recordingHandler) OnMessage(_ context.Context, raw message.RawEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, raw)
	return nil
}

func (h *recordingHandler) OnCallbackQuery(_ context.Context, cb message.Callback) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, cb)
	return nil
}

func newTestModel(t *testing.T) (*model, *recordingHandler, *channel.Lanes) {
	t.Helper()

	adapter := NewAdapter(Options{ChatID: 7, SenderID: 42, SenderName: "Alex"}, slog.New(slog.DiscardHandler))
	handler := &recordingHandler{}
	lanes := channel.NewLanes()
	t.Cleanup(lanes.Close)

	return newModel(context.Background(), adapter, handler, lanes), handler, lanes
}

func keyboardEntry() entry {
	return entry{
		id:     3,
		chatID: 7,
		role:   roleBot,
		text:   "Henk slaapt.",
		buttons: []channel.Button{
			{Text: "Wakker worden", Data: "mood:wake"},
			{Text: "Stil zijn", Data: "mood:hush"},
		},
	}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestNewAdapterDefaults(t *testing.T) {
	adapter := NewAdapter(Options{}, nil)
	if adapter.opts.ChatID != 1 || adapter.opts.ChatType != "group" || adapter.opts.SenderName != "operator" {
		t.Fatalf("defaults = %#v", adapter.opts)
	}
	if adapter.Name() != "console" {
		t.Fatalf("Name = %q, want console", adapter.Name())
	}
}

func TestEnterSendsTextEvent(t *testing.T) {
	m, handler, lanes := newTestModel(t)

	m.input.SetValue("  Hoi Henk  ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	lanes.Close()

	if cmd == nil {
		t.Fatal("expected spinner command while the event is in flight")
	}
	if m.input.Value() != "" {
		t.Fatalf("input = %q, want cleared", m.input.Value())
	}
	if m.inFlight != 1 {
		t.Fatalf("inFlight = %d, want 1", m.inFlight)
	}
	if len(handler.events) != 1 {
		t.Fatalf("handled %d events, want 1", len(handler.events))
	}

	raw := handler.events[0]
	if raw.Text != "Hoi Henk" || raw.ContentType != message.ContentTypeText {
		t.Fatalf("event content = %q/%q", raw.ContentType, raw.Text)
	}
	if raw.ChatID != 7 || raw.ChatType != "group" || raw.Date == 0 {
		t.Fatalf("event chat = %#v", raw)
	}
	if raw.From == nil || raw.From.ID != 42 || raw.From.FirstName != "Alex" {
		t.Fatalf("event sender = %#v", raw.From)
	}

	if len(m.entries) != 1 || m.entries[0].role != roleOperator || m.entries[0].id != raw.MessageID {
		t.Fatalf("transcript = %#v", m.entries)
	}
}

func TestBlankInputIsIgnored(t *testing.T) {
	m, handler, lanes := newTestModel(t)

	if cmd := m.submit("   "); cmd != nil {
		t.Fatal("expected no command for blank input")
	}
	lanes.Close()

	if len(handler.events) != 0 || len(m.entries) != 0 {
		t.Fatal("expected nothing to happen for blank input")
	}
}

func TestNonTextShortcut(t *testing.T) {
	m, handler, lanes := newTestModel(t)

	m.submit(":photo")
	m.submit(":)")
	lanes.Close()

	if len(handler.events) != 2 {
		t.Fatalf("handled %d events, want 2", len(handler.events))
	}
	if raw := handler.events[0]; raw.ContentType != "photo" || raw.Text != "" {
		t.Fatalf("photo event = %q/%q", raw.ContentType, raw.Text)
	}
	if raw := handler.events[1]; raw.ContentType != message.ContentTypeText || raw.Text != ":)" {
		t.Fatalf("smiley event = %q/%q", raw.ContentType, raw.Text)
	}
}

func TestExitCommands(t *testing.T) {
	m, handler, lanes := newTestModel(t)

	if !isQuit(m.submit(":q")) {
		t.Fatal("expected :q to quit")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); !isQuit(cmd) {
		t.Fatal("expected ctrl+c to quit")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc}); !isQuit(cmd) {
		t.Fatal("expected esc to quit")
	}
	lanes.Close()

	if len(handler.events) != 0 {
		t.Fatal("exit commands must not reach the bot")
	}
}

func TestBotMessageAndEdit(t *testing.T) {
	m, _, _ := newTestModel(t)

	m.Update(botMessageMsg{entry: keyboardEntry()})
	m.Update(editMessageMsg{handle: channel.MessageHandle{ChatID: 7, MessageID: 3}, text: "Henk is wakker."})

	if len(m.entries) != 1 {
		t.Fatalf("transcript has %d entries, want 1", len(m.entries))
	}
	if got := m.entries[0]; got.text != "Henk is wakker." || got.buttons != nil {
		t.Fatalf("edited entry = %#v", got)
	}

	m.Update(editMessageMsg{handle: channel.MessageHandle{ChatID: 8, MessageID: 3}, text: "other chat"})
	if m.entries[0].text != "Henk is wakker." {
		t.Fatal("edit for another chat must not change the entry")
	}
}

func TestPressButtonSendsCallback(t *testing.T) {
	m, handler, lanes := newTestModel(t)

	m.Update(botMessageMsg{entry: keyboardEntry()})
	m.submit(":2")
	m.submit(":5")
	lanes.Close()

	if len(handler.callbacks) != 1 {
		t.Fatalf("handled %d callbacks, want 1", len(handler.callbacks))
	}
	cb := handler.callbacks[0]
	if cb.Data != "mood:hush" || cb.ChatID != 7 || cb.MessageID != 3 || cb.FromID != 42 || cb.FromName != "Alex" {
		t.Fatalf("callback = %#v", cb)
	}
	if cb.ID == "" {
		t.Fatal("expected callback id")
	}

	last := m.entries[len(m.entries)-1]
	if last.role != roleNotice || !strings.Contains(last.text, "no button 5") {
		t.Fatalf("last entry = %#v, want out of range notice", last)
	}
}

func TestPressWithoutKeyboard(t *testing.T) {
	m, handler, lanes := newTestModel(t)

	if cmd := m.submit(":1"); cmd != nil {
		t.Fatal("expected no command without a keyboard")
	}
	lanes.Close()

	if len(handler.callbacks) != 0 {
		t.Fatal("expected no callback without a keyboard")
	}
	if len(m.entries) != 1 || m.entries[0].role != roleNotice {
		t.Fatalf("transcript = %#v", m.entries)
	}
}

func TestHandledErrorShowsInTranscript(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.inFlight = 2

	if _, cmd := m.Update(handledMsg{err: errors.New("malformed event")}); cmd != nil {
		t.Fatal("expected no command for a plain handler error")
	}
	if m.inFlight != 1 {
		t.Fatalf("inFlight = %d, want 1", m.inFlight)
	}
	if m.lastErr != "malformed event" {
		t.Fatalf("lastErr = %q", m.lastErr)
	}
	if last := m.entries[len(m.entries)-1]; last.role != roleError {
		t.Fatalf("last entry = %#v, want error", last)
	}
}

func TestHandledPanicQuits(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.inFlight = 1

	_, cmd := m.Update(handledMsg{err: &channel.PanicError{Value: "boom"}})
	if !isQuit(cmd) {
		t.Fatal("expected a handler panic to quit the console")
	}
	if m.fatal == nil {
		t.Fatal("expected fatal error to be kept")
	}
}

func TestSendWhileClosedIsQueued(t *testing.T) {
	adapter := NewAdapter(Options{ChatID: 7}, nil)
	ctx := context.Background()

	first, err := adapter.Send(ctx, 7, "Hallo")
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	second, err := adapter.SendKeyboard(ctx, 7, "Kies", []channel.Button{{Text: "A", Data: "a"}})
	if err != nil {
		t.Fatalf("SendKeyboard error: %v", err)
	}
	if first.MessageID == second.MessageID || second.ChatID != 7 {
		t.Fatalf("handles = %#v / %#v", first, second)
	}
	if err := adapter.EditText(ctx, first, "Doei"); err != nil {
		t.Fatalf("EditText error: %v", err)
	}
	if err := adapter.AnswerCallback(ctx, "cb", "ok"); err != nil {
		t.Fatalf("AnswerCallback error: %v", err)
	}

	pending := adapter.drainPending()
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].text != "Hallo" || len(pending[1].buttons) != 1 {
		t.Fatalf("pending = %#v", pending)
	}
	if len(adapter.drainPending()) != 0 {
		t.Fatal("expected pending to be drained")
	}
}

func TestRunRequiresHandler(t *testing.T) {
	adapter := NewAdapter(Options{}, nil)
	if err := adapter.Run(context.Background(), nil); err == nil {
		t.Fatal("expected error without handler")
	}
}

func TestMouseWheelUpDisablesFollowLog(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.viewport.Width = 40
	m.viewport.Height = 5
	m.viewport.SetContent(strings.Repeat("line\n", 40))
	m.viewport.GotoBottom()
	m.followLog = true

	previousOffset := m.viewport.YOffset
	if !m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp}) {
		t.Fatal("expected wheel-up to be handled")
	}
	if m.followLog {
		t.Fatal("expected followLog to be disabled after wheel-up")
	}
	if m.viewport.YOffset >= previousOffset {
		t.Fatalf("YOffset = %d, want < %d", m.viewport.YOffset, previousOffset)
	}
}

func TestMouseIgnoresNonWheelEvents(t *testing.T) {
	m, _, _ := newTestModel(t)

	if m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}) {
		t.Fatal("expected left click to be ignored")
	}
	if m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionRelease, Button: tea.MouseButtonWheelUp}) {
		t.Fatal("expected wheel release to be ignored")
	}
}

func TestViewShowsButtons(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.Update(botMessageMsg{entry: keyboardEntry()})

	view := m.View()
	if !strings.Contains(view, ":1 Wakker worden") || !strings.Contains(view, ":2 Stil zijn") {
		t.Fatalf("view does not list buttons:\n%s", view)
	}
}
