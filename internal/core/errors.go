package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by errors.Is for a channel that maps to no container.
var ErrNotFound = errors.New("container not found")

// DiscoveryError means the fleet could not be listed. The cycle is aborted
// and retried on the next tick from the same watermark.
type DiscoveryError struct {
	Source string
	Err    error
}

func NewDiscoveryError(source string, err error) *DiscoveryError {
	return &DiscoveryError{Source: source, Err: err}
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed listing %s: %v", e.Source, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// FetchError means one container's logs could not be retrieved.
type FetchError struct {
	Container string
	Err       error
}

func NewFetchError(container string, err error) *FetchError {
	return &FetchError{Container: container, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching logs for %s: %v", e.Container, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// RoutingMiss means no channel carries the container's name.
type RoutingMiss struct {
	Container string
}

func NewRoutingMiss(container string) *RoutingMiss {
	return &RoutingMiss{Container: container}
}

func (e *RoutingMiss) Error() string {
	return fmt.Sprintf("channel not found for container %s", e.Container)
}

// SendError means a chunk could not be delivered; the rest of that
// container's chunks for the cycle are dropped.
type SendError struct {
	Container string
	Channel   string
	Err       error
}

func NewSendError(container, channel string, err error) *SendError {
	return &SendError{Container: container, Channel: channel, Err: err}
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sending logs for %s to channel %s: %v", e.Container, e.Channel, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// CommandResolutionMiss means a command's channel matches no container.
type CommandResolutionMiss struct {
	Channel string
}

func NewCommandResolutionMiss(channel string) *CommandResolutionMiss {
	return &CommandResolutionMiss{Channel: channel}
}

func (e *CommandResolutionMiss) Error() string {
	return fmt.Sprintf("no container named %s", e.Channel)
}

func (e *CommandResolutionMiss) Is(target error) bool {
	return target == ErrNotFound
}
