package logging

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	BackendZap     = "zap"
	BackendZerolog = "zerolog"

	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects and tunes the logging backend
type Config struct {
	Backend string `yaml:"backend,omitempty"`
	Level   string `yaml:"level,omitempty"`
	Format  string `yaml:"format,omitempty"`
}

// New builds a Logger for the configured backend. The returned func flushes buffered output.
func New(config Config) (Logger, func(), error) {
	if config.Level == "" {
		config.Level = "info"
	}
	if config.Format == "" {
		config.Format = FormatConsole
	}

	switch strings.ToLower(config.Backend) {
	case "", BackendZap:
		return NewZapLogger(config)
	case BackendZerolog:
		return NewZerologLogger(config)
	default:
		return nil, nil, fmt.Errorf("unsupported logging backend: %s", config.Backend)
	}
}

// ===== ZAP BACKEND =====

func NewZapLogger(config Config) (Logger, func(), error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	var zapConfig zap.Config
	if config.Format == FormatJSON {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.DisableStacktrace = true
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	return newZapLogger(zapLogger), func() { _ = zapLogger.Sync() }, nil
}

func newZapLogger(zapLogger *zap.Logger) Logger {
	// Logger method and logf sit between the caller and zap
	sugar := zapLogger.WithOptions(zap.AddCallerSkip(2)).Sugar()

	return NewLogger("", LogFuncs{
		Debugf: sugar.Debugf,
		Infof:  sugar.Infof,
		Warnf:  sugar.Warnf,
		Errorf: sugar.Errorf,
	})
}

// ===== ZEROLOG BACKEND =====

func NewZerologLogger(config Config) (Logger, func(), error) {
	level, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	var zl zerolog.Logger
	if config.Format == FormatJSON {
		zl = zerolog.New(os.Stderr)
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	zl = zl.Level(level).With().Timestamp().Logger()

	logger := NewLogger("", LogFuncs{
		Debugf: func(format string, args ...interface{}) { zl.Debug().Msgf(format, args...) },
		Infof:  func(format string, args ...interface{}) { zl.Info().Msgf(format, args...) },
		Warnf:  func(format string, args ...interface{}) { zl.Warn().Msgf(format, args...) },
		Errorf: func(format string, args ...interface{}) { zl.Error().Msgf(format, args...) },
	})
	return logger, func() {}, nil
}
