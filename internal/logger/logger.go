package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/auto-dns/harbinger/internal/config"
	"github.com/rs/zerolog"
)

func SetupLogger(cfg *config.LoggingConfig) zerolog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg *config.LoggingConfig, out io.Writer) zerolog.Logger {
	var w io.Writer = out
	if !strings.EqualFold(cfg.Format, "json") {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	levelStr := strings.ToLower(cfg.Level)
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	logger := zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Str("service", "harbinger").
		Str("host", hostname).
		Logger()

	return logger
}
