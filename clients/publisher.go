package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"UnraidTools/unraid-mqtt-stats/dto"
)

// Publisher delivers discovery configs and snapshot readings to a sink,
// either a live MQTT broker or the JSON dry-run stream.
type Publisher interface {
	PublishDiscovery(ctx context.Context, sensors []*dto.Sensor) error
	PublishSnapshot(ctx context.Context, snapshot *dto.Snapshot) error
	Close()
}

// Message is one would-be MQTT message in the dry-run stream.
type Message struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

// JSONPublisher writes the messages a live run would publish as one JSON
// object per line, without touching a broker.
type JSONPublisher struct {
	encoder         *json.Encoder
	nodeID          string
	deviceName      string
	discoveryPrefix string
	device          DeviceInfo
}

func NewJSONPublisher(out io.Writer, deviceName, discoveryPrefix string) *JSONPublisher {
	nodeID := NodeID(deviceName)
	return &JSONPublisher{
		encoder:         json.NewEncoder(out),
		nodeID:          nodeID,
		deviceName:      deviceName,
		discoveryPrefix: discoveryPrefix,
		device:          NewDeviceInfo(nodeID, deviceName),
	}
}

func (p *JSONPublisher) PublishDiscovery(ctx context.Context, sensors []*dto.Sensor) error {
	for _, sensor := range sensors {
		payload, err := json.Marshal(BuildDiscovery(sensor, p.nodeID, p.deviceName, p.device))
		if err != nil {
			return fmt.Errorf("encoding discovery for %s: %w", sensor.ID, err)
		}
		message := Message{
			Topic:   sensor.DiscoveryTopic(p.discoveryPrefix, p.nodeID),
			Payload: string(payload),
		}
		if err := p.encoder.Encode(message); err != nil {
			return err
		}
	}
	return nil
}

func (p *JSONPublisher) PublishSnapshot(ctx context.Context, snapshot *dto.Snapshot) error {
	for _, reading := range snapshot.Readings {
		message := Message{
			Topic:   reading.Sensor.StateTopic(p.nodeID),
			Payload: reading.StatePayload(),
		}
		if err := p.encoder.Encode(message); err != nil {
			return err
		}
	}
	return nil
}

func (p *JSONPublisher) Close() {}
