package domain

import (
	"fmt"
	"strings"
)

// FleetLabel scopes discovery to the managed set of containers. It is
// written either as "key=value" or as a bare "key".
type FleetLabel struct {
	Key   string
	Value string
}

func ParseFleetLabel(s string) (FleetLabel, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FleetLabel{}, fmt.Errorf("fleet label is empty")
	}
	key, value, hasValue := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return FleetLabel{}, fmt.Errorf("invalid fleet label %q: missing key", s)
	}
	if !hasValue {
		return FleetLabel{Key: key}, nil
	}
	return FleetLabel{Key: key, Value: strings.TrimSpace(value)}, nil
}

// Filter renders the label in the form the Docker "label" filter expects.
func (fl FleetLabel) Filter() string {
	if fl.Value == "" {
		return fl.Key
	}
	return fl.Key + "=" + fl.Value
}

func (fl FleetLabel) Matches(labels map[string]string) bool {
	v, ok := labels[fl.Key]
	if !ok {
		return false
	}
	return fl.Value == "" || v == fl.Value
}

func (fl FleetLabel) String() string {
	return fl.Filter()
}
