package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/InteriorAI/internal/apperr"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts events as plain text messages to an ops chat.
type Telegram struct {
	api    telegramSender
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Configured() bool { return t != nil && t.api != nil && t.chatID != 0 }

func (t *Telegram) Send(ctx context.Context, p Payload) Result {
	if err := ctx.Err(); err != nil {
		return Result{Error: err.Error()}
	}
	msg := tgbotapi.NewMessage(t.chatID, formatText(p))
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return Result{Error: apperr.External("telegram", err).Error()}
	}
	return Result{Success: true}
}

func formatText(p Payload) string {
	var b strings.Builder
	b.WriteString(p.title())
	for _, kv := range p.sortedFields() {
		b.WriteString("\n")
		b.WriteString(kv[0])
		b.WriteString(": ")
		b.WriteString(kv[1])
	}
	return b.String()
}
