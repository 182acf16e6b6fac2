package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func criticalEntry(msg string) zapcore.Entry {
	return zapcore.Entry{LoggerName: CriticalName, Level: zapcore.InfoLevel, Message: msg}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.log")
	l, err := New(Config{File: path, Level: "info", Service: "signal_bot"})
	require.NoError(t, err)

	l.Info("hello")
	l.Debug("hidden")
	_ = l.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
	assert.Contains(t, string(b), `"service":"signal_bot"`)
	assert.NotContains(t, string(b), "hidden")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
}
