package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunStatusReporter logs the fleet status report at start and then every
// interval until ctx is cancelled. It writes only to the operator log, never
// to chat. A zero interval disables it.
func RunStatusReporter(ctx context.Context, bridge *Bridge, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		logger.Debug().Msg("Status reporter disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logStatus(ctx, bridge, logger)
	for {
		select {
		case <-ticker.C:
			logStatus(ctx, bridge, logger)
		case <-ctx.Done():
			return
		}
	}
}

func logStatus(ctx context.Context, bridge *Bridge, logger zerolog.Logger) {
	report, err := bridge.StatusReport(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Error building status report")
		return
	}
	logger.Info().Msg(report)
}
