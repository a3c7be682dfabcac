package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"henkbot/pkg/channel"
	"henkbot/pkg/config"
	"henkbot/pkg/message"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

var _ channel.Adapter = (*Adapter)(nil)

const channelName = "telegram"
const messagePreviewLimit = 240

// Adapter bridges Telegram long polling into the bot and sends its replies.
type Adapter struct {
	bot       *telego.Bot
	allowFrom map[string]struct{}
	log       *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return &Adapter{
		bot:       bot,
		allowFrom: allowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in logs and health output.
func (a *Adapter) Name() string {
	return channelName
}

// Run long-polls Telegram until ctx ends. Events of one chat are handled in
// order; different chats are handled concurrently. A panic in the handler
// stops Run and is returned as *channel.PanicError.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()

	updates, err := a.bot.UpdatesViaLongPolling(pollCtx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")
	return a.serve(ctx, updates, handler)
}

// serve routes updates until ctx ends, the updates channel closes or a
// handler panics. Handlers still running are cancelled before serve waits
// for them, so a stuck send cannot hold up a restart.
func (a *Adapter) serve(ctx context.Context, updates <-chan telego.Update, handler channel.Handler) error {
	runCtx, cancel := context.WithCancel(ctx)
	lanes := channel.NewLanes()
	defer func() {
		cancel()
		lanes.Close()
	}()
	fatal := make(chan error, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-fatal:
			return err
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			a.route(runCtx, lanes, fatal, handler, update)
		}
	}
}

func (a *Adapter) route(ctx context.Context, lanes *channel.Lanes, fatal chan<- error, handler channel.Handler, update telego.Update) {
	switch {
	case update.Message != nil:
		a.routeMessage(ctx, lanes, fatal, handler, update.UpdateID, update.Message)
	case update.ChannelPost != nil:
		a.routeMessage(ctx, lanes, fatal, handler, update.UpdateID, update.ChannelPost)
	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		senderID := strconv.FormatInt(query.From.ID, 10)
		if !a.senderAllowed(senderID) {
			a.log.Debug("Ignoring callback from unauthorized sender", "sender_id", senderID)
			return
		}

		cb := toCallback(query)
		a.log.Info("Received callback", "chat_id", cb.ChatID, "sender_id", senderID, "data", cb.Data)
		lanes.Submit(cb.ChatID, func() {
			a.guard(fatal, update.UpdateID, func() error { return handler.OnCallbackQuery(ctx, cb) })
		})
	default:
		a.log.Debug("Ignoring unsupported update", "update_id", update.UpdateID)
	}
}

func (a *Adapter) routeMessage(ctx context.Context, lanes *channel.Lanes, fatal chan<- error, handler channel.Handler, updateID int, msg *telego.Message) {
	senderID := ""
	if msg.From != nil {
		senderID = strconv.FormatInt(msg.From.ID, 10)
	}
	if !a.senderAllowed(senderID) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
		return
	}

	raw := toRawEvent(updateID, msg)
	a.log.Info("Received message", "chat_id", raw.ChatID, "sender_id", senderID, "content_type", raw.ContentType, "content", previewText(raw.Text))
	lanes.Submit(raw.ChatID, func() {
		a.guard(fatal, updateID, func() error { return handler.OnMessage(ctx, raw) })
	})
}

func (a *Adapter) guard(fatal chan<- error, updateID int, fn func() error) {
	err := channel.Guard(fn)
	if err == nil {
		return
	}

	var panicErr *channel.PanicError
	if errors.As(err, &panicErr) {
		a.log.Error("Handler panicked", "update_id", updateID, "panic", panicErr.Value, "stack", string(panicErr.Stack))
		select {
		case fatal <- err:
		default:
		}
		return
	}

	a.log.Warn("Dropped update", "update_id", updateID, "error", err)
}

// Send delivers one text message.
func (a *Adapter) Send(ctx context.Context, chatID int64, text string) (channel.MessageHandle, error) {
	a.log.Info("Sending message", "chat_id", chatID, "content", previewText(text))

	sent, err := a.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		return channel.MessageHandle{}, fmt.Errorf("send telegram message: %w", err)
	}

	return channel.MessageHandle{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
}

// SendKeyboard delivers text with one row of inline buttons.
func (a *Adapter) SendKeyboard(ctx context.Context, chatID int64, text string, buttons []channel.Button) (channel.MessageHandle, error) {
	a.log.Info("Sending keyboard", "chat_id", chatID, "content", previewText(text), "buttons", len(buttons))

	params := tu.Message(tu.ID(chatID), text).WithReplyMarkup(inlineKeyboard(buttons))
	sent, err := a.bot.SendMessage(ctx, params)
	if err != nil {
		return channel.MessageHandle{}, fmt.Errorf("send telegram keyboard: %w", err)
	}

	return channel.MessageHandle{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
}

// EditText replaces the text of a sent message. Its inline keyboard is removed.
func (a *Adapter) EditText(ctx context.Context, handle channel.MessageHandle, text string) error {
	_, err := a.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    tu.ID(handle.ChatID),
		MessageID: handle.MessageID,
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("edit telegram message: %w", err)
	}

	return nil
}

// AnswerCallback stops the client's loading indicator, optionally showing text.
func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	err := a.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		return fmt.Errorf("answer telegram callback: %w", err)
	}

	return nil
}

func inlineKeyboard(buttons []channel.Button) *telego.InlineKeyboardMarkup {
	row := make([]telego.InlineKeyboardButton, 0, len(buttons))
	for _, button := range buttons {
		row = append(row, tu.InlineKeyboardButton(button.Text).WithCallbackData(button.Data))
	}

	return tu.InlineKeyboard(row)
}

// toRawEvent converts a Telegram message into the transport-neutral event.
func toRawEvent(updateID int, msg *telego.Message) message.RawEvent {
	raw := message.RawEvent{
		UpdateID:    updateID,
		MessageID:   msg.MessageID,
		ChatID:      msg.Chat.ID,
		ChatType:    msg.Chat.Type,
		ContentType: contentType(msg),
		Date:        msg.Date,
	}
	if raw.ContentType == message.ContentTypeText {
		raw.Text = msg.Text
	}
	if msg.From != nil {
		raw.From = &message.Sender{ID: msg.From.ID, FirstName: msg.From.FirstName}
	}

	return raw
}

func contentType(msg *telego.Message) string {
	switch {
	case msg.Text != "":
		return message.ContentTypeText
	case len(msg.Photo) > 0:
		return "photo"
	case msg.Sticker != nil:
		return "sticker"
	case msg.Animation != nil:
		return "animation"
	case msg.Video != nil:
		return "video"
	case msg.Voice != nil:
		return "voice"
	case msg.Audio != nil:
		return "audio"
	case msg.Document != nil:
		return "document"
	case msg.Location != nil:
		return "location"
	default:
		return "other"
	}
}

// toCallback converts a Telegram callback query.
func toCallback(query *telego.CallbackQuery) message.Callback {
	cb := message.Callback{
		ID:       query.ID,
		Data:     query.Data,
		FromID:   query.From.ID,
		FromName: query.From.FirstName,
	}
	if query.Message != nil {
		cb.ChatID = query.Message.GetChat().ID
		cb.MessageID = query.Message.GetMessageID()
	}

	return cb
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}
