package logger

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var InfoLogger *zap.Logger

var (
	serviceName = "default"
)

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

type Config struct {
	// File is the append-only log the admin API tails. Empty means stdout only.
	File    string
	Level   string
	Service string
}

// New builds the process logger writing JSON lines to stdout and cfg.File and
// installs it as the package-level InfoLogger.
func New(cfg Config, opts ...zap.Option) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "parse log level %q", cfg.Level)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stdout"}
	if cfg.File != "" {
		zc.OutputPaths = append(zc.OutputPaths, cfg.File)
	}
	if cfg.Service != "" {
		SetServiceName(cfg.Service)
	}
	zc.InitialFields = map[string]any{"service": serviceName}

	l, err := zc.Build(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	InfoLogger = l
	return l, nil
}

func base() *zap.Logger {
	if InfoLogger == nil {
		return zap.L()
	}
	return InfoLogger
}

// Info and Error log through the process logger for code that has no
// injected one.
func Info(format string, args ...interface{}) {
	base().Info(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	base().Error(fmt.Sprintf(format, args...))
}
