package mqtt

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewPublisher(t *testing.T) {
	config := Config{
		Enabled:     true,
		Broker:      "tcp://localhost:1883",
		TopicPrefix: "m17/test",
		ClientID:    "test-client",
		QoS:         1,
	}
	pub := New(config, nil)
	if pub == nil {
		t.Fatal("expected non-nil publisher")
	}
	if pub.config.Broker != config.Broker {
		t.Errorf("broker = %s, want %s", pub.config.Broker, config.Broker)
	}
}

func TestStartWhenDisabledIsNoop(t *testing.T) {
	pub := New(Config{Enabled: false}, nil)
	if err := pub.Start(); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestStopWithoutStartDoesNotPanic(t *testing.T) {
	pub := New(Config{Enabled: false}, nil)
	pub.Stop()
}

func TestPublishWhenDisabledIsNoop(t *testing.T) {
	pub := New(Config{Enabled: false, TopicPrefix: "m17/test"}, nil)

	if err := pub.PublishStreamStarted(StreamStartedEvent{Source: "N0CALL", Dest: "*", Timestamp: time.Now()}); err != nil {
		t.Errorf("PublishStreamStarted: %v", err)
	}
	if err := pub.PublishPacket(PacketEvent{Source: "N0CALL", Dest: "*", PacketType: 1, Bytes: 10, Timestamp: time.Now()}); err != nil {
		t.Errorf("PublishPacket: %v", err)
	}
	if err := pub.PublishReflectorStatus(ReflectorStatusEvent{Connected: true, Timestamp: time.Now()}); err != nil {
		t.Errorf("PublishReflectorStatus: %v", err)
	}
}

func TestTopicFormat(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		suffix   string
		expected string
	}{
		{"simple topic", "m17/tnc", "streams/started", "m17/tnc/streams/started"},
		{"trailing slash in prefix", "m17/tnc/", "streams/started", "m17/tnc/streams/started"},
		{"empty prefix", "", "streams/started", "streams/started"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := New(Config{TopicPrefix: tt.prefix}, nil)
			if got := pub.formatTopic(tt.suffix); got != tt.expected {
				t.Errorf("formatTopic(%q) = %q, want %q", tt.suffix, got, tt.expected)
			}
		})
	}
}

func TestEventSerialization(t *testing.T) {
	events := []interface{}{
		StreamStartedEvent{Source: "N0CALL", Dest: "*", Timestamp: time.Now()},
		StreamEndedEvent{Source: "N0CALL", Dest: "*", Timestamp: time.Now()},
		PacketEvent{Source: "N0CALL", Dest: "*", PacketType: 1, Bytes: 10, Timestamp: time.Now()},
		ReflectorStatusEvent{Connected: true, Timestamp: time.Now()},
	}
	for _, e := range events {
		if _, err := json.Marshal(e); err != nil {
			t.Errorf("failed to marshal %T: %v", e, err)
		}
	}
}
