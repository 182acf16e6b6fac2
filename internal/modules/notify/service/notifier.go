package service

import (
	"context"
	"errors"
	"log"

	"signal_bot/internal/modules/config"

	"go.uber.org/zap"
)

// Notifier delivers one human readable message. Delivery is best effort:
// callers log failures and never retry.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// NewNotifier builds the sinks that are configured. With none configured
// messages go to stdout.
func NewNotifier(cfg *config.Config, log *zap.Logger) (Notifier, error) {
	var sinks Multi
	if cfg.Notify.FeishuWebhook != "" {
		sinks = append(sinks, NewFeishu(cfg.Notify.FeishuWebhook, cfg.Notify.Title, cfg.Notify.Timeout))
	}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != 0 {
		tg, err := NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			// a broken bot token should not keep the trader down
			log.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			sinks = append(sinks, tg)
		}
	}
	if len(sinks) == 0 {
		return NewStdout(), nil
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

// Multi sends to every sink and reports all failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) Send(_ context.Context, text string) error {
	log.Println(text)
	return nil
}
