package service

import (
	"context"
	"fmt"
	"strings"

	"signal_bot/internal/models"
	position "signal_bot/internal/modules/position/service"
	"signal_bot/pkg/logger"

	"go.uber.org/zap"
)

// keyboard button texts, handled like the matching commands
const (
	btnStart  = "▶️ Start trading"
	btnStop   = "⏹ Stop trading"
	btnStatus = "📊 Status"
)

type Control interface {
	CurrentSignal(ctx context.Context) (models.ControlSignal, error)
	SetSignal(ctx context.Context, sig models.ControlSignal) error
}

// Commands answers chat commands from the operator's chat.
type Commands struct {
	chatID    int64
	control   Control
	positions *position.Store
	log       *zap.Logger
	critical  *zap.Logger
}

func NewCommands(chatID int64, control Control, positions *position.Store, log *zap.Logger) *Commands {
	l := log.Named("telegram")
	return &Commands{
		chatID:    chatID,
		control:   control,
		positions: positions,
		log:       l,
		critical:  logger.Critical(l),
	}
}

// Handle returns the reply for text sent in chatID. Messages from other
// chats are ignored.
func (c *Commands) Handle(ctx context.Context, chatID int64, text string) (string, bool) {
	if chatID != c.chatID {
		c.log.Warn("message from unknown chat ignored", zap.Int64("chat", chatID))
		return "", false
	}
	cmd := strings.TrimSpace(text)
	if strings.HasPrefix(cmd, "/") {
		cmd = strings.SplitN(strings.TrimPrefix(cmd, "/"), " ", 2)[0]
		cmd = strings.SplitN(cmd, "@", 2)[0]
	}

	switch cmd {
	case "start", btnStart:
		return c.set(ctx, models.ControlStart), true
	case "stop", btnStop:
		return c.set(ctx, models.ControlStop), true
	case "status", btnStatus:
		return c.status(ctx), true
	case "positions":
		return c.list(), true
	case "help":
		return "/start resume trading\n/stop pause trading\n/status control signal and positions\n/positions open positions", true
	}
	return "", false
}

func (c *Commands) set(ctx context.Context, sig models.ControlSignal) string {
	if err := c.control.SetSignal(ctx, sig); err != nil {
		c.log.Error("control write failed", zap.Error(err))
		return fmt.Sprintf("❗️ failed to write %s signal: %v", sig, err)
	}
	c.critical.Info(fmt.Sprintf("%s signal written from telegram", sig))
	return fmt.Sprintf("✅ %s signal written", sig)
}

func (c *Commands) status(ctx context.Context) string {
	sig, err := c.control.CurrentSignal(ctx)
	state := string(sig)
	if err != nil {
		state = "unreadable: " + err.Error()
	}
	return fmt.Sprintf("control: %s\n%s", state, c.list())
}

func (c *Commands) list() string {
	active := c.positions.Active()
	if len(active) == 0 {
		return "📭 no open positions"
	}
	var b strings.Builder
	b.WriteString("📊 positions:\n")
	for _, p := range active {
		fmt.Fprintf(&b, "- %s [%s %s] %s qty=%v @ %.8g stop=%.8g tp=%.8g\n",
			p.InstID, p.Variant, p.Side, p.State, p.Quantity, p.EntryPrice, p.StopLevel, p.TakeProfitLevel)
	}
	return b.String()
}
