package logger

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CriticalName is the logger name whose entries are mirrored to the notifier.
const CriticalName = "critical"

// Critical returns a child logger whose entries reach the notification sink.
func Critical(l *zap.Logger) *zap.Logger {
	return l.Named(CriticalName)
}

func isCritical(e zapcore.Entry) bool {
	if e.Level >= zapcore.DPanicLevel {
		return true
	}
	return e.LoggerName == CriticalName || strings.HasSuffix(e.LoggerName, "."+CriticalName)
}

type Sink interface {
	Send(ctx context.Context, text string) error
}

// Mirror forwards critical entries to a Sink off the logging path. When the
// buffer is full new entries are dropped.
type Mirror struct {
	ch chan string
}

func NewMirror(buffer int) *Mirror {
	if buffer <= 0 {
		buffer = 64
	}
	return &Mirror{ch: make(chan string, buffer)}
}

// Hook is installed with zap.Hooks.
func (m *Mirror) Hook(e zapcore.Entry) error {
	if !isCritical(e) {
		return nil
	}
	text := e.Message
	if e.Level >= zapcore.ErrorLevel {
		text = strings.ToUpper(e.Level.String()) + ": " + text
	}
	select {
	case m.ch <- text:
	default:
	}
	return nil
}

// Run delivers buffered entries until ctx is done. Delivery failures are
// logged through log and never retried.
func (m *Mirror) Run(ctx context.Context, sink Sink, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-m.ch:
			if err := sink.Send(ctx, text); err != nil {
				log.Warn("notification delivery failed", zap.Error(err))
			}
		}
	}
}
