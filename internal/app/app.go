package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	dockerCli "github.com/docker/docker/client"
	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/auto-dns/docker-discord-relay/internal/chat"
	"github.com/auto-dns/docker-discord-relay/internal/config"
	"github.com/auto-dns/docker-discord-relay/internal/core"
	"github.com/auto-dns/docker-discord-relay/internal/domain"
	"github.com/auto-dns/docker-discord-relay/internal/format"
	"github.com/auto-dns/docker-discord-relay/internal/runtime"
	"github.com/auto-dns/docker-discord-relay/internal/watermark"
)

type App struct {
	cfg       *config.Config
	runtime   *runtime.Docker
	session   *discordgo.Session
	discord   *chat.Discord
	store     watermark.Store
	directory *core.Directory
	bridge    *core.Bridge
	formatter *format.Formatter
	engine    *core.RelayEngine
	logger    zerolog.Logger
}

// NewDockerRuntime connects to the Docker daemon named by cfg, or by the
// standard Docker environment variables when no host is configured.
func NewDockerRuntime(cfg *config.Config, logger zerolog.Logger) (*runtime.Docker, error) {
	opts := []dockerCli.Opt{dockerCli.FromEnv, dockerCli.WithAPIVersionNegotiation()}
	if cfg.Docker.Host != "" {
		opts = append(opts, dockerCli.WithHost(cfg.Docker.Host))
	}
	dockerClient, err := dockerCli.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return runtime.NewDocker(dockerClient, cfg.App.StopTimeout, logger.With().Str("component", "docker").Logger()), nil
}

// NewDirectory builds the container directory for the configured fleet.
func NewDirectory(cfg *config.Config, rt *runtime.Docker, logger zerolog.Logger) (*core.Directory, error) {
	label, err := domain.ParseFleetLabel(cfg.App.FleetLabel)
	if err != nil {
		return nil, err
	}
	callTimeout := time.Duration(cfg.App.CallTimeout) * time.Second
	return core.NewDirectory(rt, label, cfg.App.IncludeStopped, callTimeout, logger.With().Str("component", "directory").Logger()), nil
}

// NewStore opens the configured watermark backend. Durable backends start
// unseen containers at start.
func NewStore(cfg *config.Config, start time.Time, logger zerolog.Logger) (watermark.Store, error) {
	wcfg := cfg.Watermark
	switch wcfg.Backend {
	case config.BackendEtcd:
		etcdClient, err := clientv3.New(clientv3.Config{
			Endpoints:   wcfg.Etcd.Endpoints,
			DialTimeout: time.Duration(wcfg.Etcd.DialTimeout) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to etcd: %w", err)
		}
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown-host"
		}
		return watermark.NewEtcdStore(etcdClient, &wcfg, hostname, start, time.Now, logger.With().Str("component", "watermark").Logger()), nil
	case config.BackendSqlite:
		maxBackfill := time.Duration(wcfg.MaxBackfill) * time.Second
		return watermark.NewSqliteStore(wcfg.Sqlite.Path, maxBackfill, start, time.Now)
	default:
		return watermark.NewMemoryStore(start), nil
	}
}

// New creates a new App by wiring up all dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	rt, err := NewDockerRuntime(cfg, logger)
	if err != nil {
		return nil, err
	}
	directory, err := NewDirectory(cfg, rt, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	callTimeout := time.Duration(cfg.App.CallTimeout) * time.Second
	discord := chat.NewDiscord(session, cfg.Discord.GuildId, callTimeout, logger.With().Str("component", "discord").Logger())

	formatter := format.New(cfg.Format)
	bridge := core.NewBridge(directory, rt, formatter, cfg.Discord.OwnerId, callTimeout, logger.With().Str("component", "bridge").Logger())

	return &App{
		cfg:       cfg,
		runtime:   rt,
		session:   session,
		discord:   discord,
		directory: directory,
		bridge:    bridge,
		formatter: formatter,
		logger:    logger,
	}, nil
}

// Run connects to Discord, then runs the relay loop and the status reporter
// until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error during shutdown")
		}
	}()
	a.logger.Info().Msg("Application starting")

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	a.logger.Info().Msgf("Bot is ready. Logged in as %s", a.session.State.User.Username)

	if a.cfg.Discord.RegisterCommands {
		if err := a.discord.RegisterCommands(ctx, a.session.State.User.ID); err != nil {
			a.logger.Error().Err(err).Msg("Error registering slash commands")
		}
	}
	removeHandler := a.discord.Listen(ctx, a.bridge)
	defer removeHandler()

	// The watermark starts now so history from before startup is not replayed.
	store, err := NewStore(a.cfg, time.Now(), a.logger)
	if err != nil {
		return err
	}
	a.store = store
	a.engine = a.newEngine(store)

	go core.RunStatusReporter(ctx, a.bridge, time.Duration(a.cfg.App.StatusLogInterval)*time.Second, a.logger.With().Str("component", "status").Logger())

	if err := a.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// RunOnce relays a single cycle covering the last lookback and reports it.
// Durable watermark backends resume from their stored position instead.
func (a *App) RunOnce(ctx context.Context, lookback time.Duration) (core.CycleReport, error) {
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error during shutdown")
		}
	}()
	if err := a.session.Open(); err != nil {
		return core.CycleReport{}, fmt.Errorf("failed to open discord session: %w", err)
	}
	store, err := NewStore(a.cfg, time.Now().Add(-lookback), a.logger)
	if err != nil {
		return core.CycleReport{}, err
	}
	a.store = store
	a.engine = a.newEngine(store)
	return a.engine.RunCycle(ctx), nil
}

func (a *App) newEngine(store watermark.Store) *core.RelayEngine {
	return core.NewRelayEngine(a.logger.With().Str("component", "relay").Logger(), &a.cfg.App, a.directory, a.runtime, a.discord, a.formatter, store, time.Now)
}

func (a *App) Close() error {
	var firstErr error
	if a.session != nil {
		if err := a.session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close discord session: %w", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close watermark store: %w", err)
		}
	}
	if a.runtime != nil {
		if err := a.runtime.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close docker client: %w", err)
		}
	}
	return firstErr
}
