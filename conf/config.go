package conf

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	TypeOverride = "override"
	TypeCommand  = "command"
)

// ConfigError is fatal when loading: a registry cannot be built from a
// configuration that carries one.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("sensor configuration: %s", e.Reason)
	}
	return fmt.Sprintf("sensor configuration %q: %s", e.Key, e.Reason)
}

// SensorEntry is one [sensors.<key>] table. Pointer fields distinguish
// absent from zero so overrides only patch what they actually set.
type SensorEntry struct {
	Type        string   `toml:"type"`
	Name        *string  `toml:"name"`
	Unit        *string  `toml:"unit"`
	DeviceClass *string  `toml:"device_class"`
	Icon        *string  `toml:"icon"`
	Disabled    *bool    `toml:"disabled"`
	Command     *string  `toml:"command"`
	Args        []string `toml:"args"`
	PostProcess []string `toml:"post_process"`
}

// S3Config points the optional S3 probe sensors at an endpoint.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

type Config struct {
	S3      *S3Config              `toml:"s3"`
	Sensors map[string]SensorEntry `toml:"sensors"`

	order []string
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ParseConfig(string(data))
}

// ParseConfig decodes and validates a sensors configuration, keeping the
// declaration order of the [sensors.*] tables. Overrides are applied in
// that order, so it is part of the contract, not a presentation detail.
func ParseConfig(text string) (*Config, error) {
	var config Config
	md, err := toml.Decode(text, &config)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	for _, key := range md.Undecoded() {
		log.Printf("ignoring unknown configuration key %q", key.String())
	}
	config.order = sensorKeyOrder(md)
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// OrderedSensorKeys returns the [sensors.*] keys in declaration order.
func (config *Config) OrderedSensorKeys() []string {
	return config.order
}

func sensorKeyOrder(md toml.MetaData) []string {
	var order []string
	seen := make(map[string]bool)
	for _, key := range md.Keys() {
		if len(key) >= 2 && key[0] == "sensors" && !seen[key[1]] {
			seen[key[1]] = true
			order = append(order, key[1])
		}
	}
	return order
}

func (config *Config) validate() error {
	for _, key := range config.order {
		entry := config.Sensors[key]
		switch entry.Type {
		case TypeOverride:
			if err := validateOverrideKey(key); err != nil {
				return err
			}
		case TypeCommand:
			if entry.Command == nil || *entry.Command == "" {
				return &ConfigError{Key: key, Reason: "command sensor needs a command"}
			}
			if entry.Name == nil || *entry.Name == "" {
				return &ConfigError{Key: key, Reason: "command sensor needs a name"}
			}
		default:
			return &ConfigError{Key: key, Reason: fmt.Sprintf("unknown sensor type %q", entry.Type)}
		}
	}
	return nil
}

// validateOverrideKey rejects keys whose first or last "_"-token is empty;
// such a key can never match any sensor id and is a configuration mistake.
func validateOverrideKey(key string) error {
	if key == "" {
		return &ConfigError{Key: key, Reason: "empty override key"}
	}
	tokens := strings.Split(key, "_")
	if tokens[0] == "" || tokens[len(tokens)-1] == "" {
		return &ConfigError{Key: key, Reason: "malformed pattern: empty first or last token"}
	}
	return nil
}
