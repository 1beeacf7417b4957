package runtime

import (
	"context"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/rs/zerolog"

	"github.com/auto-dns/docker-discord-relay/internal/domain"
)

// Docker is the container runtime backed by the Docker Engine API.
type Docker struct {
	logger      zerolog.Logger
	cli         dockerClient
	stopTimeout int
}

func NewDocker(cli dockerClient, stopTimeout int, logger zerolog.Logger) *Docker {
	return &Docker{
		logger:      logger,
		cli:         cli,
		stopTimeout: stopTimeout,
	}
}

// ListContainers returns the containers matching labelFilter. Stopped
// containers are included when all is set.
func (d *Docker) ListContainers(ctx context.Context, labelFilter string, all bool) ([]domain.Container, error) {
	opts := container.ListOptions{
		All:     all,
		Filters: filters.NewArgs(filters.Arg("label", labelFilter)),
	}
	containers, err := d.cli.ContainerList(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]domain.Container, 0, len(containers))
	for _, c := range containers {
		out = append(out, fromContainerSummary(c))
	}
	return out, nil
}

// FetchLogs returns stdout and stderr written strictly after since and no
// later than until. The output must be valid UTF-8.
func (d *Docker) FetchLogs(ctx context.Context, containerId string, since, until time.Time) ([]byte, error) {
	opts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		// The daemon treats since as inclusive.
		Since: since.Add(time.Nanosecond).Format(time.RFC3339Nano),
		Until: until.Format(time.RFC3339Nano),
	}
	reader, err := d.cli.ContainerLogs(ctx, containerId, opts)
	if err != nil {
		return nil, fmt.Errorf("request logs: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read logs: %w", err)
	}
	logs, err := demux(raw)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(logs) {
		return nil, fmt.Errorf("decode logs: output is not valid UTF-8")
	}
	d.logger.Debug().Str("container_id", containerId).Int("bytes", len(logs)).Msg("Fetched logs")
	return logs, nil
}

func (d *Docker) Start(ctx context.Context, containerId string) error {
	return d.cli.ContainerStart(ctx, containerId, container.StartOptions{})
}

func (d *Docker) Stop(ctx context.Context, containerId string) error {
	timeout := d.stopTimeout
	return d.cli.ContainerStop(ctx, containerId, container.StopOptions{Timeout: &timeout})
}

func (d *Docker) Restart(ctx context.Context, containerId string) error {
	timeout := d.stopTimeout
	return d.cli.ContainerRestart(ctx, containerId, container.StopOptions{Timeout: &timeout})
}

func (d *Docker) Close() error {
	return d.cli.Close()
}
