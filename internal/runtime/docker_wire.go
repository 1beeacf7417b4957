package runtime

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/auto-dns/docker-discord-relay/internal/domain"
)

func fromContainerSummary(c container.Summary) domain.Container {
	name := ""
	if len(c.Names) > 0 {
		name = c.Names[0]
	}
	return domain.Container{
		Id:      c.ID,
		Name:    domain.NormalizeName(name),
		Status:  c.Status,
		State:   string(c.State),
		Created: time.Unix(c.Created, 0),
		Labels:  c.Labels,
	}
}

// isMultiplexed reports whether raw starts with a stdcopy frame header:
// one stream byte (stdin, stdout or stderr), three zero bytes and a
// big-endian payload size that fits in the rest of the buffer. Containers
// with a TTY produce a raw stream instead.
func isMultiplexed(raw []byte) bool {
	const headerLen = 8
	if len(raw) < headerLen {
		return false
	}
	if raw[0] > byte(stdcopy.Stderr) || raw[1] != 0 || raw[2] != 0 || raw[3] != 0 {
		return false
	}
	size := binary.BigEndian.Uint32(raw[4:headerLen])
	return int(size) <= len(raw)-headerLen
}

// demux merges stdout and stderr frames back into one stream in the order
// the daemon wrote them.
func demux(raw []byte) ([]byte, error) {
	if !isMultiplexed(raw) {
		return raw, nil
	}
	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("demultiplex log stream: %w", err)
	}
	return out.Bytes(), nil
}
