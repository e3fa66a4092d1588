package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"UnraidTools/unraid-mqtt-stats/dto"
)

const (
	mqttKeepAlive      = 5 * time.Second
	mqttConnectTimeout = 30 * time.Second
	mqttQoS            = 1
)

// MQTTOptions carries the broker connection settings from the CLI surface.
type MQTTOptions struct {
	Host     string
	Port     int
	ClientID string
	Username string
	Password string
}

// MQTTPublisher publishes state and discovery messages to a broker at QoS 1.
// Discovery messages are retained so Home Assistant rediscovers the sensors
// after a restart; state messages are not.
type MQTTPublisher struct {
	client          mqtt.Client
	nodeID          string
	deviceName      string
	discoveryPrefix string
	device          DeviceInfo
}

func NewMQTTPublisher(options MQTTOptions, deviceName, discoveryPrefix string) (*MQTTPublisher, error) {
	clientID := options.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("unraid-mqtt-stats-%d", os.Getpid())
	}

	clientOptions := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", options.Host, options.Port)).
		SetClientID(clientID).
		SetKeepAlive(mqttKeepAlive).
		SetConnectTimeout(mqttConnectTimeout)
	if options.Username != "" {
		clientOptions.SetUsername(options.Username)
		clientOptions.SetPassword(options.Password)
	}

	client := mqtt.NewClient(clientOptions)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("connecting to mqtt broker %s:%d: timed out", options.Host, options.Port)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s:%d: %w", options.Host, options.Port, err)
	}
	log.Printf("connected to mqtt broker %s:%d as %s", options.Host, options.Port, clientID)

	nodeID := NodeID(deviceName)
	return &MQTTPublisher{
		client:          client,
		nodeID:          nodeID,
		deviceName:      deviceName,
		discoveryPrefix: discoveryPrefix,
		device:          NewDeviceInfo(nodeID, deviceName),
	}, nil
}

func (p *MQTTPublisher) PublishDiscovery(ctx context.Context, sensors []*dto.Sensor) error {
	for _, sensor := range sensors {
		payload, err := json.Marshal(BuildDiscovery(sensor, p.nodeID, p.deviceName, p.device))
		if err != nil {
			return fmt.Errorf("encoding discovery for %s: %w", sensor.ID, err)
		}
		topic := sensor.DiscoveryTopic(p.discoveryPrefix, p.nodeID)
		if err := p.publish(ctx, topic, string(payload), true); err != nil {
			return fmt.Errorf("publishing discovery for %s: %w", sensor.ID, err)
		}
	}
	log.Printf("published discovery for %d sensors", len(sensors))
	return nil
}

func (p *MQTTPublisher) PublishSnapshot(ctx context.Context, snapshot *dto.Snapshot) error {
	for _, reading := range snapshot.Readings {
		topic := reading.Sensor.StateTopic(p.nodeID)
		if err := p.publish(ctx, topic, reading.StatePayload(), false); err != nil {
			return fmt.Errorf("publishing %s: %w", reading.Sensor.ID, err)
		}
	}
	return nil
}

func (p *MQTTPublisher) publish(ctx context.Context, topic, payload string, retain bool) error {
	token := p.client.Publish(topic, mqttQoS, retain, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
