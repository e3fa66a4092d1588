package conf

import (
	"bytes"
	"os"

	"github.com/BurntSushi/toml"

	"UnraidTools/unraid-mqtt-stats/dto"
)

// DumpEntry mirrors SensorEntry with concrete fields for serializing a
// resolved sensor. Builtins dump as overrides pinning their resolved
// metadata; command sensors dump whole so a dump reloads to the same
// registry.
type DumpEntry struct {
	Type        string   `toml:"type"`
	Name        string   `toml:"name"`
	Unit        string   `toml:"unit,omitempty"`
	DeviceClass string   `toml:"device_class,omitempty"`
	Icon        string   `toml:"icon,omitempty"`
	Disabled    bool     `toml:"disabled"`
	Command     string   `toml:"command,omitempty"`
	Args        []string `toml:"args,omitempty"`
	PostProcess []string `toml:"post_process,omitempty"`
}

type Dump struct {
	Sensors map[string]DumpEntry `toml:"sensors"`
}

// DumpSensors serializes a resolved registry back into the configuration
// schema. The encoder sorts keys, so output is deterministic.
func DumpSensors(sensors []*dto.Sensor) (string, error) {
	dump := Dump{Sensors: make(map[string]DumpEntry, len(sensors))}
	for _, s := range sensors {
		entry := DumpEntry{
			Type:        TypeOverride,
			Name:        s.Name,
			Unit:        s.Unit,
			DeviceClass: string(s.DeviceClass),
			Icon:        s.Icon,
			Disabled:    s.Disabled,
		}
		if s.Kind == dto.KindCommand {
			entry.Type = TypeCommand
			entry.Command = s.Command
			entry.Args = s.Args
			entry.PostProcess = s.PostProcess
		}
		dump.Sensors[s.ID] = entry
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(dump); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func WriteSensorDump(filePath string, sensors []*dto.Sensor) error {
	text, err := DumpSensors(sensors)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, []byte(text), 0644)
}
