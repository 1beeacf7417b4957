package main

import (
	"context"
	"time"

	"github.com/auto-dns/docker-discord-relay/internal/core"
)

type application interface {
	Run(ctx context.Context) error
	RunOnce(ctx context.Context, lookback time.Duration) (core.CycleReport, error)
}
