package mqtt

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/logger"
	"github.com/tphakala/go-porcupine/internal/observability/metrics"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// client implements the Client interface on top of paho.
type client struct {
	config          Config
	internalClient  paho.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	metrics         *metrics.MQTTMetrics
	newClient       func(*paho.ClientOptions) paho.Client
}

// NewClient creates a new MQTT client. m may be nil.
func NewClient(config Config, m *metrics.MQTTMetrics) (Client, error) {
	if _, err := url.Parse(config.Broker); err != nil || config.Broker == "" {
		return nil, errors.Newf("invalid broker URL %q", config.Broker).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	defaults := DefaultConfig()
	if config.Topic == "" {
		config.Topic = defaults.Topic
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = defaults.PublishTimeout
	}
	if config.DisconnectTimeout <= 0 {
		config.DisconnectTimeout = defaults.DisconnectTimeout
	}
	if config.MaxReconnectDelay <= 0 {
		config.MaxReconnectDelay = defaults.MaxReconnectDelay
	}
	if config.ClientID == "" {
		config.ClientID = "porcupine-" + uuid.NewString()[:8]
	}
	if config.QoS > 2 {
		config.QoS = defaults.QoS
	}
	return &client{
		config:    config,
		metrics:   m,
		newClient: paho.NewClient,
	}, nil
}

// Connect resolves the broker host and then connects.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastConnAttempt.IsZero() && time.Since(c.lastConnAttempt) < c.config.ReconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago", time.Since(c.lastConnAttempt)).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	c.lastConnAttempt = time.Now()

	if err := resolveBroker(ctx, c.config.Broker); err != nil {
		return err
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnectDelay)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetWill(c.config.StatusTopic(), statusOffline, 1, true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.internalClient = c.newClient(opts)

	token := c.internalClient.Connect()
	if err := waitToken(ctx, token, c.config.ConnectTimeout); err != nil {
		c.recordError("connect")
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			NetworkContext(c.config.Broker, c.config.ConnectTimeout).
			Context("operation", "connect").
			Build()
	}

	c.setConnected(true)
	return nil
}

// resolveBroker fails fast on unresolvable host names instead of letting
// the client retry forever.
func resolveBroker(ctx context.Context, broker string) error {
	u, err := url.Parse(broker)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	host := u.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		return nil
	}
	if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Context("operation", "resolve_host").
			Context("host", host).
			Build()
	}
	return nil
}

// Publish sends payload to topic.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnectedLocked() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("topic", topic).
			Build()
	}

	GetLogger().Debug("publishing message",
		logger.String("topic", topic),
		logger.Int("size", len(payload)))

	start := time.Now()
	token := c.internalClient.Publish(topic, c.config.QoS, c.config.Retain, payload)
	err := waitToken(ctx, token, c.config.PublishTimeout)
	if c.metrics != nil {
		c.metrics.RecordPublish(topic, len(payload), start, err)
	}
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Context("operation", "publish").
			Build()
	}
	return nil
}

// waitToken waits for a token until timeout or ctx is done.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.NewStd("operation timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsConnected returns true if the client is currently connected.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnectedLocked()
}

func (c *client) isConnectedLocked() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect publishes the offline status and closes the connection.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internalClient == nil {
		return
	}
	if c.internalClient.IsConnected() {
		token := c.internalClient.Publish(c.config.StatusTopic(), 1, true, statusOffline)
		_ = token.WaitTimeout(c.config.DisconnectTimeout)
	}
	c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	c.setConnected(false)
}

func (c *client) onConnect(pc paho.Client) {
	GetLogger().Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	c.setConnected(true)
	// Runs on paho's goroutine; do not wait while Connect may hold the lock.
	pc.Publish(c.config.StatusTopic(), 1, true, statusOnline)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	GetLogger().Warn("connection to MQTT broker lost",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
	c.setConnected(false)
	c.recordError("connection_lost")
}

func (c *client) onReconnecting(_ paho.Client, _ *paho.ClientOptions) {
	GetLogger().Debug("reconnecting to MQTT broker", logger.String("broker", c.config.Broker))
	if c.metrics != nil {
		c.metrics.RecordReconnect()
	}
}

func (c *client) setConnected(connected bool) {
	if c.metrics != nil {
		c.metrics.SetConnected(connected)
	}
}

func (c *client) recordError(operation string) {
	if c.metrics != nil {
		c.metrics.RecordError(operation)
	}
}
