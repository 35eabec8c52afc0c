// Package mqtt publishes TNC/reflector-client lifecycle and traffic
// events to an MQTT broker via eclipse/paho.mqtt.golang, for dashboards
// and automation that want push notification rather than polling the
// metrics endpoint.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"m17/pkg/logger"
)

// Config holds MQTT publisher configuration.
type Config struct {
	Enabled     bool
	Broker      string // e.g. "tcp://localhost:1883"
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
}

// Publisher publishes M17 TNC events to an MQTT broker.
type Publisher struct {
	config Config
	log    *logger.Logger
	client paho.Client
}

// StreamStartedEvent is published when a voice stream begins.
type StreamStartedEvent struct {
	Source    string    `json:"source"`
	Dest      string    `json:"dest"`
	Module    byte      `json:"module,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StreamEndedEvent is published when a voice stream ends.
type StreamEndedEvent struct {
	Source    string    `json:"source"`
	Dest      string    `json:"dest"`
	Timestamp time.Time `json:"timestamp"`
}

// PacketEvent is published for each received packet-mode frame.
type PacketEvent struct {
	Source     string    `json:"source"`
	Dest       string    `json:"dest"`
	PacketType byte      `json:"packet_type"`
	Bytes      int       `json:"bytes"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReflectorStatusEvent is published on reflector connect/disconnect.
type ReflectorStatusEvent struct {
	Connected bool      `json:"connected"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New constructs a Publisher. The underlying paho client is configured
// but not connected until Start is called.
func New(config Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.New(logger.Config{Level: "info"})
	}
	return &Publisher{
		config: config,
		log:    log.WithComponent("mqtt"),
	}
}

// Start connects to the broker. A no-op if disabled in config.
func (p *Publisher) Start() error {
	if !p.config.Enabled {
		p.log.Info("mqtt publisher disabled")
		return nil
	}

	opts := paho.NewClientOptions().
		AddBroker(p.config.Broker).
		SetClientID(p.config.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.log.Warn("mqtt connection lost", logger.Error(err))
	})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", p.config.Broker, err)
	}
	p.log.Info("connected to mqtt broker", logger.String("broker", p.config.Broker))
	return nil
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// PublishStreamStarted publishes a stream-started event.
func (p *Publisher) PublishStreamStarted(event StreamStartedEvent) error {
	return p.publish("streams/started", event)
}

// PublishStreamEnded publishes a stream-ended event.
func (p *Publisher) PublishStreamEnded(event StreamEndedEvent) error {
	return p.publish("streams/ended", event)
}

// PublishPacket publishes a packet-received event.
func (p *Publisher) PublishPacket(event PacketEvent) error {
	return p.publish("packets", event)
}

// PublishReflectorStatus publishes a reflector connect/disconnect event.
func (p *Publisher) PublishReflectorStatus(event ReflectorStatusEvent) error {
	return p.publish("reflector/status", event)
}

func (p *Publisher) publish(topicSuffix string, event interface{}) error {
	if !p.config.Enabled || p.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal mqtt event: %w", err)
	}

	topic := p.formatTopic(topicSuffix)
	token := p.client.Publish(topic, p.config.QoS, p.config.Retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		p.log.Error("mqtt publish failed", logger.String("topic", topic), logger.Error(err))
		return err
	}
	return nil
}

func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}
