package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ppiankov/regwatch/internal/model"
)

// telegramMaxRunes is the Bot API limit on message length
const telegramMaxRunes = 4096

// messageSender is the slice of *tgbotapi.BotAPI used for alerts
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends alerts to a chat through a bot
type Telegram struct {
	sender messageSender
	chatID int64
	format Formatter
}

// NewTelegram authenticates the bot token and returns a channel for chatID
func NewTelegram(token string, chatID int64, format Formatter) (*Telegram, error) {
	if chatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newTelegram(api, chatID, format), nil
}

func newTelegram(sender messageSender, chatID int64, format Formatter) *Telegram {
	return &Telegram{sender: sender, chatID: chatID, format: format}
}

// Name identifies the channel in logs
func (t *Telegram) Name() string { return "telegram" }

// ChangeDetected sends a change alert
func (t *Telegram) ChangeDetected(ctx context.Context, alert model.ChangeAlert) error {
	return t.send(ctx, t.format.ChangeMessage(alert))
}

// ScraperError sends an error alert
func (t *Telegram) ScraperError(ctx context.Context, alert model.ErrorAlert) error {
	return t.send(ctx, t.format.ErrorMessage(alert))
}

func (t *Telegram) send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if runes := []rune(text); len(runes) > telegramMaxRunes {
		text = string(runes[:telegramMaxRunes])
	}
	// Plain text; alert bodies contain diff markup that breaks Markdown parsing.
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.sender.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
