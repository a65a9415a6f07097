package mqtt

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/observability/metrics"
	"github.com/tphakala/go-porcupine/internal/wakeword"
)

// fakeToken completes immediately with err, or never when pending is set.
type fakeToken struct {
	err     error
	pending bool
	done    chan struct{}
}

func newToken(err error, pending bool) *fakeToken {
	t := &fakeToken{err: err, pending: pending, done: make(chan struct{})}
	if !pending {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  any
}

// fakePaho records publishes. Methods the client never calls are left to
// the embedded nil interface.
type fakePaho struct {
	paho.Client

	mu             sync.Mutex
	opts           *paho.ClientOptions
	connected      bool
	connectErr     error
	publishPending bool
	messages       []published
	disconnected   bool
}

func (f *fakePaho) Connect() paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = f.connectErr == nil
	return newToken(f.connectErr, false)
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload any) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{topic, qos, retained, payload})
	return newToken(nil, f.publishPending)
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnected = true
}

func (f *fakePaho) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.messages)
}

func newTestClient(t *testing.T, fake *fakePaho, m *metrics.MQTTMetrics) *client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Broker = "tcp://127.0.0.1:1883"
	cfg.ClientID = "test"
	cfg.PublishTimeout = 50 * time.Millisecond
	c, err := NewClient(cfg, m)
	require.NoError(t, err)
	impl := c.(*client)
	impl.newClient = func(opts *paho.ClientOptions) paho.Client {
		fake.opts = opts
		return fake
	}
	return impl
}

func TestConnectConfiguresClient(t *testing.T) {
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	fake := &fakePaho{}
	c := newTestClient(t, fake, m)

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
	assert.InDelta(t, 1, testutil.ToFloat64(m.Connected), 0)

	require.NotNil(t, fake.opts)
	assert.True(t, fake.opts.AutoReconnect)
	assert.Equal(t, "test", fake.opts.ClientID)
	assert.Equal(t, "porcupine/status", fake.opts.WillTopic)
	assert.Equal(t, []byte("offline"), fake.opts.WillPayload)
	assert.True(t, fake.opts.WillRetained)
}

func TestConnectFailure(t *testing.T) {
	fake := &fakePaho{connectErr: errors.NewStd("refused")}
	c := newTestClient(t, fake, nil)

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
	assert.False(t, c.IsConnected())
}

func TestConnectCooldown(t *testing.T) {
	fake := &fakePaho{connectErr: errors.NewStd("refused")}
	c := newTestClient(t, fake, nil)

	require.Error(t, c.Connect(context.Background()))
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too recent")
}

func TestPublishRequiresConnection(t *testing.T) {
	c := newTestClient(t, &fakePaho{}, nil)
	err := c.Publish(context.Background(), "porcupine/detection", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestPublishTimeout(t *testing.T) {
	fake := &fakePaho{publishPending: true}
	c := newTestClient(t, fake, nil)
	require.NoError(t, c.Connect(context.Background()))

	err := c.Publish(context.Background(), "porcupine/detection", []byte("{}"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
}

func TestPublisherSendsDetectionJSON(t *testing.T) {
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	fake := &fakePaho{}
	c := newTestClient(t, fake, m)
	require.NoError(t, c.Connect(context.Background()))

	pub := NewPublisher(c, Config{Topic: "home/wake"})
	d := wakeword.Detection{
		ID:          "id-1",
		Keyword:     "porcupine",
		Index:       0,
		Source:      "mic",
		Time:        time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		FrameOffset: 42,
		Offset:      1.344,
	}
	require.NoError(t, pub.HandleDetection(context.Background(), d))

	sent := fake.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "home/wake/detection", sent[0].topic)
	assert.Equal(t, byte(1), sent[0].qos)
	assert.False(t, sent[0].retained)

	var got wakeword.Detection
	require.NoError(t, json.Unmarshal(sent[0].payload.([]byte), &got))
	assert.Equal(t, d, got)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Published.WithLabelValues("home/wake/detection", "success")), 0)
}

func TestDisconnectPublishesOffline(t *testing.T) {
	fake := &fakePaho{}
	c := newTestClient(t, fake, nil)
	require.NoError(t, c.Connect(context.Background()))

	c.Disconnect()

	sent := fake.sent()
	require.NotEmpty(t, sent)
	last := sent[len(sent)-1]
	assert.Equal(t, "porcupine/status", last.topic)
	assert.Equal(t, "offline", last.payload)
	assert.True(t, last.retained)
	assert.True(t, fake.disconnected)
	assert.False(t, c.IsConnected())
}

func TestOnConnectPublishesOnline(t *testing.T) {
	fake := &fakePaho{}
	c := newTestClient(t, fake, nil)
	c.onConnect(fake)

	sent := fake.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "online", sent[0].payload)
}

func TestNewClientRejectsEmptyBroker(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	require.Error(t, err)
}

func TestNewClientGeneratesClientID(t *testing.T) {
	c, err := NewClient(Config{Broker: "tcp://localhost:1883"}, nil)
	require.NoError(t, err)
	id := c.(*client).config.ClientID
	assert.True(t, strings.HasPrefix(id, "porcupine-"), id)
	assert.Len(t, id, len("porcupine-")+8)
}
