package channel

import (
	"context"

	"henkbot/pkg/message"
)

// Handler receives inbound events from an adapter.
type Handler interface {
	OnMessage(context.Context, message.RawEvent) error
	OnCallbackQuery(context.Context, message.Callback) error
}

// MessageHandle identifies a message the bot sent.
type MessageHandle struct {
	ChatID    int64
	MessageID int
}

// Button is one inline keyboard button. Data is delivered back as
// Callback.Data when it is pressed.
type Button struct {
	Text string
	Data string
}

// Sender is the outbound half of a transport.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) (MessageHandle, error)
	SendKeyboard(ctx context.Context, chatID int64, text string, buttons []Button) (MessageHandle, error)
	EditText(ctx context.Context, handle MessageHandle, text string) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// Adapter bridges one external transport (for example Telegram) into the bot.
type Adapter interface {
	Sender
	Name() string
	Run(context.Context, Handler) error
}
