package clients

import (
	"fmt"
	"log"
	"os"
	"strings"

	"UnraidTools/unraid-mqtt-stats/dto"
)

const unraidVersionFile = "/etc/unraid-version"

// DiscoveryConfig is the Home Assistant MQTT discovery payload for one
// sensor. unit_of_measurement is always present and null when the sensor
// has no unit, which tells Home Assistant the sensor is non-numeric.
type DiscoveryConfig struct {
	Name              string     `json:"name"`
	StateTopic        string     `json:"state_topic"`
	UniqueID          string     `json:"unique_id"`
	UnitOfMeasurement *string    `json:"unit_of_measurement"`
	DeviceClass       string     `json:"device_class,omitempty"`
	Icon              string     `json:"icon,omitempty"`
	Device            DeviceInfo `json:"device"`
}

// DeviceInfo groups every sensor under one Home Assistant device entry.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
	SWVersion    string   `json:"sw_version"`
}

// NodeID derives the MQTT node id from the configured device name.
func NodeID(deviceName string) string {
	return "unraid_" + deviceName
}

func NewDeviceInfo(nodeID, deviceName string) DeviceInfo {
	return DeviceInfo{
		Identifiers:  []string{nodeID},
		Name:         "Unraid " + deviceName,
		Model:        "Unraid Server",
		Manufacturer: "Lime Technology",
		SWVersion:    UnraidVersion(),
	}
}

// BuildDiscovery renders the discovery payload for a sensor. The mdi:
// prefix is attached to the icon here and nowhere else.
func BuildDiscovery(sensor *dto.Sensor, nodeID, deviceName string, device DeviceInfo) DiscoveryConfig {
	config := DiscoveryConfig{
		Name:        fmt.Sprintf("%s %s", deviceName, sensor.Name),
		StateTopic:  sensor.StateTopic(nodeID),
		UniqueID:    fmt.Sprintf("%s_%s", nodeID, sensor.ID),
		DeviceClass: string(sensor.DeviceClass),
		Device:      device,
	}
	if sensor.Unit != "" {
		unit := sensor.Unit
		config.UnitOfMeasurement = &unit
	}
	if sensor.Icon != "" {
		config.Icon = "mdi:" + sensor.Icon
	}
	return config
}

// UnraidVersion reads the OS release from /etc/unraid-version.
func UnraidVersion() string {
	return readUnraidVersion(unraidVersionFile)
}

// readUnraidVersion extracts the version from a `version="6.12.4"` line.
// Anything unreadable or unparsable reports as Unknown.
func readUnraidVersion(filePath string) string {
	data, err := os.ReadFile(filePath)
	if err != nil {
		log.Printf("reading unraid version: %v", err)
		return "Unknown"
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if value, found := strings.CutPrefix(line, "version="); found {
			return strings.Trim(value, `"`)
		}
	}
	return "Unknown"
}
