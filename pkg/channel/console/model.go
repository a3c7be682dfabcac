package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"henkbot/pkg/channel"
	"henkbot/pkg/message"
)

const (
	roleOperator = "operator"
	roleBot      = "bot"
	roleNotice   = "notice"
	roleError    = "error"
)

const mouseWheelLines = 3

type entry struct {
	id      int
	chatID  int64
	role    string
	text    string
	buttons []channel.Button
}

type botMessageMsg struct {
	entry entry
}

type editMessageMsg struct {
	handle channel.MessageHandle
	text   string
}

type noticeMsg struct {
	text    string
	isError bool
}

// handledMsg reports that one operator event went through the handler.
type handledMsg struct {
	err error
}

type model struct {
	ctx     context.Context
	adapter *Adapter
	handler channel.Handler
	lanes   *channel.Lanes

	theme     theme
	spinner   spinner.Model
	input     textinput.Model
	viewport  viewport.Model
	entries   []entry
	width     int
	height    int
	isReady   bool
	inFlight  int
	followLog bool
	lastErr   string
	fatal     error
}

func newModel(ctx context.Context, adapter *Adapter, handler channel.Handler, lanes *channel.Lanes) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("44"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Zeg iets tegen Henk..."
	in.Focus()
	in.CharLimit = 0

	return &model{
		ctx:       ctx,
		adapter:   adapter,
		handler:   handler,
		lanes:     lanes,
		theme:     defaultTheme(),
		spinner:   spin,
		input:     in,
		viewport:  viewport.New(80, 12),
		width:     100,
		height:    28,
		followLog: true,
	}
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			value := m.input.Value()
			m.input.SetValue("")
			return m, m.submit(value)
		}

		if m.handleViewportKey(typed) {
			return m, nil
		}
	case tea.MouseMsg:
		if m.handleViewportMouse(typed) {
			return m, nil
		}
	case botMessageMsg:
		m.entries = append(m.entries, typed.entry)
		m.refreshViewport(false)
		return m, nil
	case editMessageMsg:
		m.edit(typed.handle, typed.text)
		return m, nil
	case noticeMsg:
		role := roleNotice
		if typed.isError {
			role = roleError
		}
		m.entries = append(m.entries, entry{role: role, text: typed.text})
		m.refreshViewport(false)
		return m, nil
	case handledMsg:
		return m, m.handled(typed.err)
	case spinner.TickMsg:
		if m.inFlight == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit turns one input line into an event for the bot. Lines starting
// with ':' can press a keyboard button (":1") or send a non-text message
// (":photo", ":sticker").
func (m *model) submit(value string) tea.Cmd {
	text := strings.TrimSpace(value)
	if text == "" {
		return nil
	}
	if isExitCommand(text) {
		return tea.Quit
	}

	if strings.HasPrefix(text, ":") {
		switch command := strings.ToLower(text[1:]); command {
		case "photo", "sticker", "voice":
			return m.sendEvent("["+command+"]", command)
		default:
			if n, err := strconv.Atoi(command); err == nil {
				return m.press(n)
			}
		}
	}

	return m.sendEvent(text, message.ContentTypeText)
}

func (m *model) sendEvent(display string, contentType string) tea.Cmd {
	raw, id := m.adapter.operatorEvent(display, contentType)
	m.entries = append(m.entries, entry{id: id, chatID: raw.ChatID, role: roleOperator, text: display})
	m.lastErr = ""
	m.refreshViewport(true)

	return m.run(raw.ChatID, func() error { return m.handler.OnMessage(m.ctx, raw) })
}

// press answers button n (1-based) of the latest keyboard.
func (m *model) press(n int) tea.Cmd {
	target, ok := m.latestKeyboard()
	if !ok {
		m.entries = append(m.entries, entry{role: roleNotice, text: "no keyboard to press"})
		m.refreshViewport(true)
		return nil
	}
	if n < 1 || n > len(target.buttons) {
		m.entries = append(m.entries, entry{role: roleNotice, text: fmt.Sprintf("no button %d, keyboard has %d", n, len(target.buttons))})
		m.refreshViewport(true)
		return nil
	}

	button := target.buttons[n-1]
	cb := m.adapter.operatorCallback(target, button)
	m.entries = append(m.entries, entry{chatID: target.chatID, role: roleOperator, text: "[" + button.Text + "]"})
	m.refreshViewport(true)

	return m.run(target.chatID, func() error { return m.handler.OnCallbackQuery(m.ctx, cb) })
}

func (m *model) run(chatID int64, fn func() error) tea.Cmd {
	if !m.adapter.dispatch(m.lanes, chatID, fn) {
		return nil
	}

	m.inFlight++
	if m.inFlight == 1 {
		return m.spinner.Tick
	}

	return nil
}

func (m *model) handled(err error) tea.Cmd {
	if m.inFlight > 0 {
		m.inFlight--
	}
	if err == nil {
		return nil
	}

	var panicErr *channel.PanicError
	if errors.As(err, &panicErr) {
		m.fatal = err
		return tea.Quit
	}

	m.lastErr = err.Error()
	m.entries = append(m.entries, entry{role: roleError, text: err.Error()})
	m.refreshViewport(false)
	return nil
}

func (m *model) latestKeyboard() (entry, bool) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].role == roleBot && len(m.entries[i].buttons) > 0 {
			return m.entries[i], true
		}
	}

	return entry{}, false
}

// edit replaces the text of a bot message and drops its keyboard.
func (m *model) edit(handle channel.MessageHandle, text string) {
	for i := range m.entries {
		current := &m.entries[i]
		if current.role == roleBot && current.id == handle.MessageID && current.chatID == handle.ChatID {
			current.text = text
			current.buttons = nil
			m.refreshViewport(false)
			return
		}
	}
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}

	opts := m.adapter.opts
	header := m.theme.header.Width(m.width - 2).Render("Henk console")
	meta := m.theme.headerMeta.Render(fmt.Sprintf(
		"chat:%d (%s) · as:%s (%d) · messages:%d",
		opts.ChatID,
		opts.ChatType,
		opts.SenderName,
		opts.SenderID,
		operatorMessages(m.entries),
	))
	line := m.theme.divider.Render(strings.Repeat("─", max(8, m.width-2)))

	status := m.theme.status.Render("Enter send · :1 press button · :photo non-text · PgUp/PgDn scroll · Ctrl+C/Esc quit")
	if m.inFlight > 0 {
		status = m.theme.statusBusy.Render(m.spinner.View() + " Henk is thinking...")
	}
	if m.lastErr != "" {
		status = m.theme.statusErr.Render("last event failed: " + m.lastErr)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		meta,
		line,
		m.theme.viewportArea.Width(m.width-2).Render(m.viewport.View()),
		status,
		m.theme.inputLabel.Render(opts.SenderName)+" "+m.theme.hint.Render("(type :q to quit)"),
		m.theme.input.Width(m.width-2).Render(m.input.View()),
	)
}

func (m *model) resizeComponents() {
	w := max(40, m.width-6)
	h := max(6, m.height-10)

	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset
	sections := make([]string, 0, len(m.entries))
	for _, item := range m.entries {
		sections = append(sections, m.renderEntry(item))
	}

	m.viewport.SetContent(strings.Join(sections, "\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := max(0, m.viewport.TotalLineCount()-m.viewport.Height)
	m.viewport.SetYOffset(min(previousOffset, maxOffset))
}

func (m *model) renderEntry(item entry) string {
	body := strings.TrimSpace(item.text)
	width := m.viewport.Width

	switch item.role {
	case roleOperator:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.operatorTag.Render(m.adapter.opts.SenderName),
			m.theme.operatorBox.Width(width).Render(body),
		)
	case roleBot:
		if len(item.buttons) > 0 {
			body += "\n\n" + m.renderButtons(item.buttons)
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.botTag.Render("Henk"),
			m.theme.botBox.Width(width).Render(body),
		)
	case roleError:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.errorTag.Render("error"),
			m.theme.errorBox.Width(width).Render(body),
		)
	default:
		return m.theme.notice.Render("· " + body)
	}
}

func (m *model) renderButtons(buttons []channel.Button) string {
	rendered := make([]string, 0, len(buttons))
	for i, button := range buttons {
		rendered = append(rendered, m.theme.button.Render(fmt.Sprintf(":%d %s", i+1, button.Text)))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(mouseWheelLines)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(mouseWheelLines)
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	default:
		return false
	}
}

func operatorMessages(entries []entry) int {
	count := 0
	for _, item := range entries {
		if item.role == roleOperator {
			count++
		}
	}

	return count
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case ":q", ":quit":
		return true
	default:
		return false
	}
}
