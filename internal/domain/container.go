package domain

import (
	"strings"
	"time"
)

type Container struct {
	Id      string
	Name    string // lowercase, no leading slash
	Status  string // runtime-reported, e.g. "Up 3 hours"
	State   string // e.g. "running", "exited"
	Created time.Time
	Labels  map[string]string
}

// Channel is a chat destination. Containers bind to channels by name.
type Channel struct {
	Id   string
	Name string
}

// NormalizeName lowercases a container or channel name and strips the
// leading slash the Docker API puts on container names.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
}

func (c Channel) Matches(containerName string) bool {
	return strings.EqualFold(c.Name, containerName)
}
