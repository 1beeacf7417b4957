// Package watermark records how far each container's logs have been relayed.
package watermark

import (
	"context"
	"time"
)

// Store tracks the instant up to which logs have been relayed. Advance is
// called once per completed relay cycle; values never move backwards.
type Store interface {
	// Since returns the instant after which logs for container are new.
	Since(ctx context.Context, container string) (time.Time, error)
	// Advance moves the watermark of every listed container to `to`.
	Advance(ctx context.Context, containers []string, to time.Time) error
	Close() error
}

// floor bounds how far back a durable store will ask for logs. Containers the
// store has never seen start at the store's creation time, and a watermark
// older than maxBackfill is clamped so a long outage does not replay
// unbounded history.
type floor struct {
	started     time.Time
	maxBackfill time.Duration
	now         func() time.Time
}

func (f floor) apply(stored time.Time, found bool) time.Time {
	if !found {
		return f.started
	}
	if f.maxBackfill > 0 {
		if earliest := f.now().Add(-f.maxBackfill); stored.Before(earliest) {
			return earliest
		}
	}
	return stored
}
