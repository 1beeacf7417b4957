package core

import (
	"context"
	"time"

	"github.com/auto-dns/docker-discord-relay/internal/domain"
)

type containerRuntime interface {
	ListContainers(ctx context.Context, labelFilter string, all bool) ([]domain.Container, error)
	FetchLogs(ctx context.Context, containerId string, since, until time.Time) ([]byte, error)
	Start(ctx context.Context, containerId string) error
	Stop(ctx context.Context, containerId string) error
	Restart(ctx context.Context, containerId string) error
}

type chatClient interface {
	ListChannels(ctx context.Context) ([]domain.Channel, error)
	Send(ctx context.Context, channelId, text string) error
}

type formatter interface {
	Format(raw string) []string
}

type watermarkStore interface {
	Since(ctx context.Context, container string) (time.Time, error)
	Advance(ctx context.Context, containers []string, to time.Time) error
}
