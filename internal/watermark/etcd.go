package watermark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/auto-dns/docker-discord-relay/internal/config"
)

type etcdClient interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Close() error
}

type etcdWatermark struct {
	Container     string    `json:"container"`
	Watermark     time.Time `json:"watermark"`
	OwnerHostname string    `json:"owner_hostname"`
	Updated       time.Time `json:"updated"`
}

// EtcdStore persists one watermark per container under a key prefix, so a
// restarted relay resumes where it left off.
type EtcdStore struct {
	client   etcdClient
	prefix   string
	hostname string
	floor    floor
	logger   zerolog.Logger
}

func NewEtcdStore(client etcdClient, cfg *config.WatermarkConfig, hostname string, start time.Time, now func() time.Time, logger zerolog.Logger) *EtcdStore {
	return &EtcdStore{
		client:   client,
		prefix:   strings.TrimRight(cfg.Etcd.Prefix, "/"),
		hostname: hostname,
		floor: floor{
			started:     start,
			maxBackfill: time.Duration(cfg.MaxBackfill) * time.Second,
			now:         now,
		},
		logger: logger,
	}
}

func (es *EtcdStore) key(container string) string {
	return fmt.Sprintf("%s/%s", es.prefix, container)
}

func (es *EtcdStore) load(ctx context.Context, container string) (time.Time, bool, error) {
	resp, err := es.client.Get(ctx, es.key(container))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get watermark for %s: %w", container, err)
	}
	if len(resp.Kvs) == 0 {
		return time.Time{}, false, nil
	}
	var wire etcdWatermark
	if err := json.Unmarshal(resp.Kvs[0].Value, &wire); err != nil {
		return time.Time{}, false, fmt.Errorf("decode watermark for %s: %w", container, err)
	}
	return wire.Watermark, true, nil
}

func (es *EtcdStore) Since(ctx context.Context, container string) (time.Time, error) {
	stored, found, err := es.load(ctx, container)
	if err != nil {
		return time.Time{}, err
	}
	return es.floor.apply(stored, found), nil
}

// Advance writes each container's key unless it already holds a newer value.
// It keeps going after a failed write and returns the first error.
func (es *EtcdStore) Advance(ctx context.Context, containers []string, to time.Time) error {
	var firstErr error
	for _, name := range containers {
		stored, found, err := es.load(ctx, name)
		if err != nil {
			es.logger.Warn().Err(err).Msgf("[etcd_watermark] Could not read watermark for %s, overwriting", name)
		} else if found && !to.After(stored) {
			continue
		}
		b, err := json.Marshal(etcdWatermark{
			Container:     name,
			Watermark:     to,
			OwnerHostname: es.hostname,
			Updated:       es.floor.now(),
		})
		if err != nil {
			return err
		}
		if _, err := es.client.Put(ctx, es.key(name), string(b)); err != nil {
			es.logger.Error().Err(err).Msgf("[etcd_watermark] Failed to store watermark for %s", name)
			if firstErr == nil {
				firstErr = fmt.Errorf("put watermark for %s: %w", name, err)
			}
			continue
		}
		es.logger.Debug().Msgf("[etcd_watermark] Advanced %s to %s", name, to.Format(time.RFC3339Nano))
	}
	return firstErr
}

func (es *EtcdStore) Close() error {
	return es.client.Close()
}
