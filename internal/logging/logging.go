// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "earnings-backtest", "logs", "backtest.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}

	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stderr
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithComponent adds a component name to the logger context.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// LogEntry logs a position entry.
func LogEntry(logger zerolog.Logger, symbol string, date time.Time, shares int, price float64) {
	logger.Info().
		Str("event", "entry").
		Str("symbol", symbol).
		Str("date", date.Format("2006-01-02")).
		Int("shares", shares).
		Float64("price", price).
		Msg("Position opened")
}

// LogExit logs a position exit.
func LogExit(logger zerolog.Logger, symbol string, date time.Time, reason string, shares int, price, pnl float64) {
	logger.Info().
		Str("event", "exit").
		Str("symbol", symbol).
		Str("date", date.Format("2006-01-02")).
		Str("reason", reason).
		Int("shares", shares).
		Float64("price", price).
		Float64("pnl", pnl).
		Msg("Position closed")
}

// LogSkip logs a skipped candidate.
func LogSkip(logger zerolog.Logger, symbol, reason string) {
	logger.Debug().
		Str("event", "skip").
		Str("symbol", symbol).
		Str("reason", reason).
		Msg("Candidate skipped")
}

// LogRiskGate logs a risk gate evaluation.
func LogRiskGate(logger zerolog.Logger, date time.Time, windowPnL, ratio float64, allowed bool) {
	logger.Info().
		Str("event", "risk_gate").
		Str("date", date.Format("2006-01-02")).
		Float64("window_pnl", windowPnL).
		Float64("ratio", ratio).
		Bool("allowed", allowed).
		Msg("Risk gate evaluated")
}
