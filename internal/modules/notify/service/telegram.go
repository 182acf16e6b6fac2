package service

import (
	"context"
	"net/http"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

// Telegram sends plain messages to one chat.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, chatID, tgbot.APIEndpoint, &http.Client{})
}

// NewTelegramWithEndpoint points the bot at another API host.
func NewTelegramWithEndpoint(token string, chatID int64, endpoint string, client *http.Client) (*Telegram, error) {
	b, err := tgbot.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, errors.Wrap(err, "telegram: init")
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Send(_ context.Context, text string) error {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return nil
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, text)); err != nil {
		return errors.Wrap(err, "telegram: send")
	}
	return nil
}
