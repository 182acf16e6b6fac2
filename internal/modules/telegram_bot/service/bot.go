package service

import (
	"context"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Bot long-polls updates and answers them through Commands.
type Bot struct {
	api  *tgbot.BotAPI
	cmds *Commands
	log  *zap.Logger
}

func NewBot(token string, cmds *Commands, log *zap.Logger) (*Bot, error) {
	api, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "telegram: init")
	}
	return &Bot{api: api, cmds: cmds, log: log.Named("telegram")}, nil
}

func (b *Bot) menu(chatID int64, text string) tgbot.MessageConfig {
	msg := tgbot.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbot.NewReplyKeyboard(
		tgbot.NewKeyboardButtonRow(
			tgbot.NewKeyboardButton(btnStart),
			tgbot.NewKeyboardButton(btnStop),
		),
		tgbot.NewKeyboardButtonRow(
			tgbot.NewKeyboardButton(btnStatus),
		),
	)
	return msg
}

// Run blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			msg := upd.Message
			if msg == nil || msg.Chat == nil {
				continue
			}
			reply, ok := b.cmds.Handle(ctx, msg.Chat.ID, msg.Text)
			if !ok {
				continue
			}
			if _, err := b.api.Send(b.menu(msg.Chat.ID, reply)); err != nil {
				b.log.Warn("reply failed", zap.Error(err))
			}
		}
	}
}
