package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/auto-dns/docker-discord-relay/internal/config"
)

func SetupLogger(cfg *config.LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stdout
	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	levelStr := strings.ToLower(cfg.Level)
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	logger := zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Str("service", "docker_discord_relay").
		Str("host", hostname).
		Logger()

	return logger
}
