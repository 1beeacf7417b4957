package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/auto-dns/docker-discord-relay/internal/domain"
	"github.com/auto-dns/docker-discord-relay/internal/util"
)

// Directory lists the containers in scope and resolves channel names back to
// them. It keeps no state: every call asks the runtime again.
type Directory struct {
	runtime        containerRuntime
	label          domain.FleetLabel
	includeStopped bool
	callTimeout    time.Duration
	logger         zerolog.Logger
}

func NewDirectory(runtime containerRuntime, label domain.FleetLabel, includeStopped bool, callTimeout time.Duration, logger zerolog.Logger) *Directory {
	return &Directory{
		runtime:        runtime,
		label:          label,
		includeStopped: includeStopped,
		callTimeout:    callTimeout,
		logger:         logger,
	}
}

// List returns the containers carrying the fleet label, with normalized names.
// A runtime failure is returned as a *DiscoveryError.
func (d *Directory) List(ctx context.Context) ([]domain.Container, error) {
	ctx, cancel := withTimeout(ctx, d.callTimeout)
	defer cancel()

	containers, err := d.runtime.ListContainers(ctx, d.label.Filter(), d.includeStopped)
	if err != nil {
		return nil, NewDiscoveryError("containers", err)
	}
	containers = util.Map(containers, func(c domain.Container) domain.Container {
		c.Name = domain.NormalizeName(c.Name)
		return c
	})
	return util.Filter(containers, func(c domain.Container) bool {
		if c.Name == "" || !d.label.Matches(c.Labels) {
			d.logger.Debug().Msgf("Ignoring container %q outside fleet %s", c.Name, d.label)
			return false
		}
		return true
	}), nil
}

// Resolve finds the container whose name equals channelName, ignoring case.
// A miss is returned as a *CommandResolutionMiss.
func (d *Directory) Resolve(ctx context.Context, channelName string) (domain.Container, error) {
	containers, err := d.List(ctx)
	if err != nil {
		return domain.Container{}, err
	}
	want := domain.NormalizeName(channelName)
	if c, ok := util.Find(containers, func(c domain.Container) bool { return c.Name == want }); ok {
		return c, nil
	}
	return domain.Container{}, NewCommandResolutionMiss(channelName)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
