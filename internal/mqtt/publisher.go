package mqtt

import (
	"context"
	"encoding/json"

	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/wakeword"
)

// Publisher forwards detections to MQTT as JSON.
type Publisher struct {
	client Client
	topic  string
}

// NewPublisher publishes detections through client to config's detection topic.
func NewPublisher(client Client, config Config) *Publisher {
	if config.Topic == "" {
		config.Topic = DefaultConfig().Topic
	}
	return &Publisher{client: client, topic: config.DetectionTopic()}
}

// Name implements wakeword.Handler.
func (p *Publisher) Name() string { return "mqtt" }

// HandleDetection implements wakeword.Handler.
func (p *Publisher) HandleDetection(ctx context.Context, d wakeword.Detection) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "marshal_detection").
			Build()
	}
	return p.client.Publish(ctx, p.topic, payload)
}

var _ wakeword.Handler = (*Publisher)(nil)
