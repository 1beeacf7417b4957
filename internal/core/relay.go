package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/auto-dns/docker-discord-relay/internal/config"
	"github.com/auto-dns/docker-discord-relay/internal/domain"
	"github.com/auto-dns/docker-discord-relay/internal/util"
)

// CycleReport summarizes one relay cycle for the operator log and for tests.
type CycleReport struct {
	Start      time.Time
	Aborted    bool
	Err        error // set when the cycle was aborted
	Containers []string
	Sent       map[string]int // chunks delivered per container
	Errors     []error        // per-container RoutingMiss, FetchError, SendError
}

// RelayEngine periodically copies new container logs into their channels.
type RelayEngine struct {
	logger    zerolog.Logger
	cfg       *config.AppConfig
	directory *Directory
	runtime   containerRuntime
	chat      chatClient
	formatter formatter
	store     watermarkStore
	now       func() time.Time
	interval  time.Duration
}

func NewRelayEngine(logger zerolog.Logger, cfg *config.AppConfig, directory *Directory, runtime containerRuntime, chat chatClient, formatter formatter, store watermarkStore, now func() time.Time) *RelayEngine {
	if now == nil {
		now = time.Now
	}
	return &RelayEngine{
		logger:    logger,
		cfg:       cfg,
		directory: directory,
		runtime:   runtime,
		chat:      chat,
		formatter: formatter,
		store:     store,
		now:       now,
		interval:  time.Duration(cfg.PollInterval) * time.Second,
	}
}

func (re *RelayEngine) callTimeout() time.Duration {
	return time.Duration(re.cfg.CallTimeout) * time.Second
}

// Run relays one cycle straight away and then one per poll interval until ctx
// is cancelled.
func (re *RelayEngine) Run(ctx context.Context) error {
	re.logger.Info().Msgf("Starting relay loop, polling every %s", re.interval)
	ticker := time.NewTicker(re.interval)
	defer ticker.Stop()
	re.RunCycle(ctx)
	for {
		select {
		case <-ticker.C:
			re.logger.Debug().Msg("Starting log collection cycle")
			re.RunCycle(ctx)
		case <-ctx.Done():
			re.logger.Info().Msg("Relay loop shutting down")
			return ctx.Err()
		}
	}
}

// RunCycle relays everything logged since the watermark up to the cycle start
// and then advances the watermark to the cycle start. Per-container failures
// are logged and skipped; a discovery failure or cancellation leaves the
// watermark where it was.
func (re *RelayEngine) RunCycle(ctx context.Context) CycleReport {
	start := re.now()
	report := CycleReport{Start: start, Sent: map[string]int{}}

	containers, err := re.directory.List(ctx)
	if err != nil {
		re.logger.Error().Err(err).Msg("Error listing containers, skipping cycle")
		report.Aborted, report.Err = true, err
		return report
	}
	report.Containers = util.Map(containers, func(c domain.Container) string { return c.Name })
	re.logger.Debug().Msgf("Found %d containers to monitor", len(containers))

	channels, err := re.listChannels(ctx)
	if err != nil {
		re.logger.Error().Err(err).Msg("Error listing channels, skipping cycle")
		report.Aborted, report.Err = true, err
		return report
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(max(1, re.cfg.Concurrency))
	for _, c := range containers {
		g.Go(func() error {
			sent, err := re.relayContainer(ctx, c, channels, start)
			mu.Lock()
			defer mu.Unlock()
			if sent > 0 {
				report.Sent[c.Name] = sent
			}
			if err != nil {
				report.Errors = append(report.Errors, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		re.logger.Warn().Err(err).Msg("Cycle interrupted, watermark left unadvanced")
		report.Aborted, report.Err = true, err
		return report
	}

	if err := re.store.Advance(ctx, report.Containers, start); err != nil {
		re.logger.Error().Err(err).Msg("Error advancing watermark")
	}
	re.logger.Debug().
		Int("containers", len(containers)).
		Int("failures", len(report.Errors)).
		Msg("Log collection cycle completed")
	return report
}

func (re *RelayEngine) listChannels(ctx context.Context) ([]domain.Channel, error) {
	ctx, cancel := withTimeout(ctx, re.callTimeout())
	defer cancel()
	channels, err := re.chat.ListChannels(ctx)
	if err != nil {
		return nil, NewDiscoveryError("channels", err)
	}
	return channels, nil
}

// relayContainer returns the number of chunks delivered and the failure, if
// any, that stopped the container's relay for this cycle.
func (re *RelayEngine) relayContainer(ctx context.Context, c domain.Container, channels []domain.Channel, until time.Time) (int, error) {
	logger := re.logger.With().Str("container", c.Name).Logger()

	channel, ok := util.Find(channels, func(ch domain.Channel) bool { return ch.Matches(c.Name) })
	if !ok {
		miss := NewRoutingMiss(c.Name)
		logger.Warn().Msg(miss.Error())
		return 0, miss
	}

	since, err := re.store.Since(ctx, c.Name)
	if err != nil {
		fetchErr := NewFetchError(c.Name, fmt.Errorf("read watermark: %w", err))
		logger.Error().Err(fetchErr).Msg("Error reading watermark")
		return 0, fetchErr
	}

	fetchCtx, cancel := withTimeout(ctx, re.callTimeout())
	logs, err := re.runtime.FetchLogs(fetchCtx, c.Id, since, until)
	cancel()
	if err != nil {
		fetchErr := NewFetchError(c.Name, err)
		logger.Error().Err(fetchErr).Msg("Error fetching logs")
		return 0, fetchErr
	}
	if len(logs) == 0 {
		logger.Debug().Msg("No new logs")
		return 0, nil
	}

	chunks := re.formatter.Format(string(logs))
	// Logging our own relay activity at info would produce new log lines for
	// the next cycle to relay, forever.
	if c.Name == domain.NormalizeName(re.cfg.SelfContainer) {
		logger.Debug().Int("chunks", len(chunks)).Msg("Sending logs")
	} else {
		logger.Info().Int("chunks", len(chunks)).Msgf("Sending logs for %s", c.Name)
	}

	for i, chunk := range chunks {
		sendCtx, cancel := withTimeout(ctx, re.callTimeout())
		err := re.chat.Send(sendCtx, channel.Id, chunk)
		cancel()
		if err != nil {
			sendErr := NewSendError(c.Name, channel.Name, err)
			logger.Error().Err(sendErr).Msgf("Dropping %d remaining chunk(s)", len(chunks)-i-1)
			return i, sendErr
		}
	}
	return len(chunks), nil
}
