// Package mqtt publishes wake word detections to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/tphakala/go-porcupine/internal/logger"
)

// Client defines the MQTT operations the application uses.
type Client interface {
	// Connect connects to the broker. Later connection losses are
	// recovered automatically.
	Connect(ctx context.Context) error

	// Publish sends payload to topic and waits for the broker to accept it.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected returns true if the client is currently connected.
	IsConnected() bool

	// Disconnect closes the connection.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	Topic             string // base topic, detections go to <Topic>/detection
	Retain            bool
	QoS               byte
	ReconnectCooldown time.Duration // minimum time between explicit Connect calls
	MaxReconnectDelay time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		Topic:             "porcupine",
		QoS:               1,
		ReconnectCooldown: 5 * time.Second,
		MaxReconnectDelay: 5 * time.Minute,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// DetectionTopic returns the topic detections are published to.
func (c *Config) DetectionTopic() string {
	return c.Topic + "/detection"
}

// StatusTopic returns the topic carrying "online" or the "offline" will.
func (c *Config) StatusTopic() string {
	return c.Topic + "/status"
}

// GetLogger returns the mqtt logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
