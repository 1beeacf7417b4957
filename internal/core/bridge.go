package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/auto-dns/docker-discord-relay/internal/domain"
)

// Reply is the single response to one command. Chunks after the first are
// continuations of the same reply, used only when it outgrows one message.
type Reply struct {
	Chunks []string
}

func textReply(format string, args ...any) Reply {
	return Reply{Chunks: []string{fmt.Sprintf(format, args...)}}
}

func (r Reply) Text() string {
	return strings.Join(r.Chunks, "\n")
}

type lifecycleAction struct {
	verb string
	past string
	run  func(ctx context.Context, containerId string) error
}

// Bridge answers chat commands against the container directory.
type Bridge struct {
	directory   *Directory
	runtime     containerRuntime
	formatter   formatter
	ownerId     string
	callTimeout time.Duration
	logger      zerolog.Logger
	actions     map[domain.CommandName]lifecycleAction
}

// NewBridge builds a Bridge. When ownerId is non-empty only that user may
// run lifecycle commands; status stays open to everyone.
func NewBridge(directory *Directory, runtime containerRuntime, formatter formatter, ownerId string, callTimeout time.Duration, logger zerolog.Logger) *Bridge {
	return &Bridge{
		directory:   directory,
		runtime:     runtime,
		formatter:   formatter,
		ownerId:     ownerId,
		callTimeout: callTimeout,
		logger:      logger,
		actions: map[domain.CommandName]lifecycleAction{
			domain.CommandStart:   {verb: "start", past: "started", run: runtime.Start},
			domain.CommandStop:    {verb: "stop", past: "stopped", run: runtime.Stop},
			domain.CommandRestart: {verb: "restart", past: "restarted", run: runtime.Restart},
		},
	}
}

// Handle dispatches cmd and always returns exactly one reply.
func (b *Bridge) Handle(ctx context.Context, cmd domain.Command) Reply {
	b.logger.Info().
		Str("command", string(cmd.Name)).
		Str("channel", cmd.ChannelName).
		Str("user", cmd.UserId).
		Msg("Handling command")

	if !cmd.Name.IsValid() {
		return textReply("Unknown command %s", cmd.Name)
	}
	switch cmd.Name {
	case domain.CommandStatus:
		return b.Status(ctx)
	case domain.CommandStart:
		return b.Start(ctx, cmd)
	case domain.CommandStop:
		return b.Stop(ctx, cmd)
	default:
		return b.Restart(ctx, cmd)
	}
}

// StatusReport renders one "name: status" line per container in scope.
func (b *Bridge) StatusReport(ctx context.Context) (string, error) {
	containers, err := b.directory.List(ctx)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("Container status report:\n")
	for _, c := range containers {
		fmt.Fprintf(&sb, "%s: %s\n", c.Name, c.Status)
	}
	return sb.String(), nil
}

// Status ignores the invoking channel and reports on the whole fleet.
func (b *Bridge) Status(ctx context.Context) Reply {
	report, err := b.StatusReport(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("Error building status report")
		return textReply("Failed to get container status")
	}
	return Reply{Chunks: b.formatter.Format(report)}
}

func (b *Bridge) Start(ctx context.Context, cmd domain.Command) Reply {
	return b.lifecycle(ctx, cmd, b.actions[domain.CommandStart])
}

func (b *Bridge) Stop(ctx context.Context, cmd domain.Command) Reply {
	return b.lifecycle(ctx, cmd, b.actions[domain.CommandStop])
}

func (b *Bridge) Restart(ctx context.Context, cmd domain.Command) Reply {
	return b.lifecycle(ctx, cmd, b.actions[domain.CommandRestart])
}

func (b *Bridge) lifecycle(ctx context.Context, cmd domain.Command, action lifecycleAction) Reply {
	if b.ownerId != "" && cmd.UserId != b.ownerId {
		b.logger.Warn().Str("user", cmd.UserId).Msgf("Refused %s from non-owner", action.verb)
		return textReply("You are not allowed to %s containers", action.verb)
	}

	container, err := b.directory.Resolve(ctx, cmd.ChannelName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return textReply("No containers named %s", cmd.ChannelName)
		}
		b.logger.Error().Err(err).Msgf("Error resolving container for %s", action.verb)
		return textReply("Failed to %s container %s: %v", action.verb, cmd.ChannelName, err)
	}

	actionCtx, cancel := withTimeout(ctx, b.callTimeout)
	defer cancel()
	if err := action.run(actionCtx, container.Id); err != nil {
		b.logger.Error().Err(err).Str("container", container.Name).Msgf("Failed to %s container", action.verb)
		return textReply("Failed to %s container %s: %v", action.verb, cmd.ChannelName, err)
	}
	b.logger.Info().Str("container", container.Name).Msgf("Container %s", action.past)
	return textReply("Container %s %s", cmd.ChannelName, action.past)
}
