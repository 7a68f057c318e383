package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/logging"
	"github.com/muurk/climanode/internal/metrics"
)

// MQTTConfig configures the cloud connection.
type MQTTConfig struct {
	Server         string
	Port           string
	Token          string
	ClientID       string
	RetryInterval  time.Duration
	PublishTimeout time.Duration
}

// MQTTTransport connects to the cloud broker, feeds RPC requests to Inbound
// and publishes responses, attributes and telemetry.
type MQTTTransport struct {
	cfg     MQTTConfig
	client  mqtt.Client
	inbound chan Inbound
	done    chan struct{}
	once    sync.Once
	metrics *metrics.Metrics
	log     *zap.Logger

	mu        sync.RWMutex
	connected bool
}

// NewClientID returns "climanode-" followed by four hex digits.
func NewClientID() string {
	return "climanode-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
}

// BrokerURL builds the tcp URL of the broker.
func BrokerURL(server, port string) string {
	if port == "" {
		port = "1883"
	}
	if strings.Contains(server, "://") {
		return fmt.Sprintf("%s:%s", server, port)
	}
	return fmt.Sprintf("tcp://%s:%s", server, port)
}

func NewMQTTTransport(cfg MQTTConfig, m *metrics.Metrics) *MQTTTransport {
	if cfg.ClientID == "" {
		cfg.ClientID = NewClientID()
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}

	t := &MQTTTransport{
		cfg:     cfg,
		inbound: make(chan Inbound, 16),
		done:    make(chan struct{}),
		metrics: m,
		log:     logging.Named("gateway.mqtt"),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(BrokerURL(cfg.Server, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Token)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(cfg.RetryInterval)
	opts.SetMaxReconnectInterval(cfg.RetryInterval)
	opts.SetOrderMatters(true)
	opts.SetOnConnectHandler(t.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		t.setConnected(false)
		t.log.Warn("Cloud connection lost, will reconnect",
			zap.Error(err),
			zap.Duration("retry_interval", cfg.RetryInterval),
		)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		t.log.Debug("Reconnecting to cloud broker")
	})

	t.client = mqtt.NewClient(opts)
	return t
}

// onConnect runs on every (re)connect; the clean session drops
// subscriptions so they are renewed here.
func (t *MQTTTransport) onConnect(c mqtt.Client) {
	t.setConnected(true)
	t.log.Info("Connected to cloud broker",
		zap.String("broker", BrokerURL(t.cfg.Server, t.cfg.Port)),
		zap.String("client_id", t.cfg.ClientID),
	)

	token := c.Subscribe(TopicRPCRequest, 1, t.onMessage)
	go func() {
		if !token.WaitTimeout(t.cfg.PublishTimeout) {
			t.log.Warn("RPC subscription not acknowledged in time")
			return
		}
		if err := token.Error(); err != nil {
			t.log.Error("RPC subscription failed", zap.Error(err))
		}
	}()
}

func (t *MQTTTransport) onMessage(_ mqtt.Client, msg mqtt.Message) {
	in := Inbound{Topic: msg.Topic(), Payload: append([]byte(nil), msg.Payload()...)}
	select {
	case t.inbound <- in:
	case <-t.done:
	}
}

func (t *MQTTTransport) setConnected(v bool) {
	t.mu.Lock()
	t.connected = v
	t.mu.Unlock()
	t.metrics.SetCloudConnected(v)
}

// Connected reports whether the broker session is up.
func (t *MQTTTransport) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Connect starts the session and returns once the first connection is up or
// ctx ends. The client keeps retrying failed attempts, rejected credentials
// included, until then.
func (t *MQTTTransport) Connect(ctx context.Context) error {
	t.log.Info("Connecting to cloud broker",
		zap.String("broker", BrokerURL(t.cfg.Server, t.cfg.Port)),
		zap.String("client_id", t.cfg.ClientID),
	)
	token := t.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inbound returns the channel of received RPC requests.
func (t *MQTTTransport) Inbound() <-chan Inbound {
	return t.inbound
}

// Publish sends payload at QoS 1 and waits for the broker acknowledgment.
func (t *MQTTTransport) Publish(topic string, payload []byte) error {
	if !t.client.IsConnectionOpen() {
		return errors.New("mqtt not connected")
	}
	token := t.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(t.cfg.PublishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects and releases any handler blocked on Inbound.
func (t *MQTTTransport) Close() {
	t.once.Do(func() {
		close(t.done)
		t.client.Disconnect(250)
		t.setConnected(false)
		t.log.Info("Disconnected from cloud broker")
	})
}
