package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/regwatch/internal/model"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestTelegram_SendsToChat(t *testing.T) {
	sender := &fakeSender{}
	tg := newTelegram(sender, 42, Formatter{})

	require.NoError(t, tg.ChangeDetected(context.Background(), testChangeAlert()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "Change ID: c-123")
	assert.Empty(t, sender.sent[0].ParseMode)
}

func TestTelegram_ClampsLength(t *testing.T) {
	sender := &fakeSender{}
	tg := newTelegram(sender, 42, Formatter{})

	alert := model.ErrorAlert{Message: strings.Repeat("x", telegramMaxRunes*2)}
	require.NoError(t, tg.ScraperError(context.Background(), alert))
	require.Len(t, sender.sent, 1)
	assert.Len(t, []rune(sender.sent[0].Text), telegramMaxRunes)
}

func TestTelegram_SendError(t *testing.T) {
	tg := newTelegram(&fakeSender{err: errors.New("chat not found")}, 42, Formatter{})
	err := tg.ScraperError(context.Background(), model.ErrorAlert{Message: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegram_CancelledContext(t *testing.T) {
	sender := &fakeSender{}
	tg := newTelegram(sender, 42, Formatter{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, tg.ScraperError(ctx, model.ErrorAlert{Message: "x"}))
	assert.Empty(t, sender.sent)
}

func TestNewTelegram_RequiresChat(t *testing.T) {
	_, err := NewTelegram("token", 0, Formatter{})
	assert.Error(t, err)
}
