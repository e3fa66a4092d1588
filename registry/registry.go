package registry

import (
	"log"
	"strings"

	"UnraidTools/unraid-mqtt-stats/conf"
	"UnraidTools/unraid-mqtt-stats/dto"
)

// CommandReporterFactory builds the value reporter for a command sensor,
// validating its post-process chain in the process.
type CommandReporterFactory interface {
	CommandReporter(command string, args []string, postProcess []string) (dto.Reporter, error)
}

// Registry holds the resolved sensor set for one configuration. It is
// read-only once built; a config reload builds a new one.
type Registry struct {
	sensors []*dto.Sensor
	byID    map[string]*dto.Sensor
}

// Build resolves the final sensor set: builtins first, then command sensors
// inserted (or replacing a builtin) by exact id in declaration order, then
// override entries applied in declaration order with later entries winning
// per field. Overrides never create sensors; one that matches nothing is
// inert.
func Build(builtins []*dto.Sensor, config *conf.Config, factory CommandReporterFactory) (*Registry, error) {
	reg := &Registry{byID: make(map[string]*dto.Sensor, len(builtins))}
	for _, s := range builtins {
		if _, dup := reg.byID[s.ID]; dup {
			return nil, &conf.ConfigError{Key: s.ID, Reason: "duplicate sensor id"}
		}
		reg.sensors = append(reg.sensors, s)
		reg.byID[s.ID] = s
	}
	if config == nil {
		return reg, nil
	}

	for _, key := range config.OrderedSensorKeys() {
		entry := config.Sensors[key]
		if entry.Type != conf.TypeCommand {
			continue
		}
		sensor, err := commandSensor(key, entry, factory)
		if err != nil {
			return nil, err
		}
		if existing, ok := reg.byID[key]; ok {
			*existing = *sensor
		} else {
			reg.sensors = append(reg.sensors, sensor)
			reg.byID[key] = sensor
		}
	}

	for _, key := range config.OrderedSensorKeys() {
		entry := config.Sensors[key]
		if entry.Type != conf.TypeOverride {
			continue
		}
		matched := 0
		if IsPattern(key) {
			if tokens := strings.Split(key, "_"); tokens[0] == "*" || tokens[len(tokens)-1] == "*" {
				log.Printf("override pattern %q has * as its first or last token and cannot match any sensor", key)
			}
			for _, s := range reg.sensors {
				if Match(key, s.ID) {
					applyOverride(s, entry)
					matched++
				}
			}
		} else if s, ok := reg.byID[key]; ok {
			applyOverride(s, entry)
			matched++
		}
		if matched == 0 {
			log.Printf("override %q matched no sensors", key)
		}
	}
	return reg, nil
}

func commandSensor(id string, entry conf.SensorEntry, factory CommandReporterFactory) (*dto.Sensor, error) {
	sensor := &dto.Sensor{
		ID:          id,
		Kind:        dto.KindCommand,
		Command:     *entry.Command,
		Args:        entry.Args,
		PostProcess: entry.PostProcess,
	}
	applyOverride(sensor, entry)
	reporter, err := factory.CommandReporter(sensor.Command, sensor.Args, sensor.PostProcess)
	if err != nil {
		return nil, &conf.ConfigError{Key: id, Reason: err.Error()}
	}
	sensor.Reporter = reporter
	return sensor, nil
}

func applyOverride(s *dto.Sensor, entry conf.SensorEntry) {
	if entry.Name != nil {
		s.Name = *entry.Name
	}
	if entry.Unit != nil {
		s.Unit = *entry.Unit
	}
	if entry.DeviceClass != nil {
		s.DeviceClass = dto.DeviceClass(*entry.DeviceClass)
	}
	if entry.Icon != nil {
		s.Icon = *entry.Icon
	}
	if entry.Disabled != nil {
		s.Disabled = *entry.Disabled
	}
}

// All returns every resolved sensor, disabled ones included, in registry
// order.
func (r *Registry) All() []*dto.Sensor {
	return r.sensors
}

// Enabled returns the sensors that take part in scheduling and discovery.
func (r *Registry) Enabled() []*dto.Sensor {
	enabled := make([]*dto.Sensor, 0, len(r.sensors))
	for _, s := range r.sensors {
		if !s.Disabled {
			enabled = append(enabled, s)
		}
	}
	return enabled
}

func (r *Registry) Get(id string) (*dto.Sensor, bool) {
	s, ok := r.byID[id]
	return s, ok
}
