package dto

import (
	"context"
	"fmt"
)

type SensorKind string

const (
	KindBuiltin SensorKind = "builtin"
	KindCommand SensorKind = "command"
)

// DeviceClass is a Home Assistant sensor device class, passed through to
// discovery as-is.
type DeviceClass string

const (
	DeviceClassDataSize    DeviceClass = "data_size"
	DeviceClassTemperature DeviceClass = "temperature"
	DeviceClassDuration    DeviceClass = "duration"
)

// Reporter produces the current raw value for one sensor. Implementations
// must be safe for repeated calls and must honor ctx cancellation.
type Reporter interface {
	Report(ctx context.Context) (Value, error)
}

// ReporterFunc adapts a plain function to the Reporter interface.
type ReporterFunc func(ctx context.Context) (Value, error)

func (f ReporterFunc) Report(ctx context.Context) (Value, error) {
	return f(ctx)
}

// Sensor is one resolved sensor definition. Icon is stored without the
// "mdi:" prefix; discovery adds it.
type Sensor struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Unit        string      `json:"unit,omitempty"`
	DeviceClass DeviceClass `json:"device_class,omitempty"`
	Icon        string      `json:"icon,omitempty"`
	Disabled    bool        `json:"disabled"`
	Kind        SensorKind  `json:"kind"`

	Command     string   `json:"command,omitempty"`
	Args        []string `json:"args,omitempty"`
	PostProcess []string `json:"post_process,omitempty"`

	Reporter Reporter `json:"-"`
}

func (s *Sensor) StateTopic(nodeID string) string {
	return fmt.Sprintf("%s/sensor/%s/state", nodeID, s.ID)
}

func (s *Sensor) DiscoveryTopic(prefix, nodeID string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", prefix, nodeID, s.ID)
}
