package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/klf200-bridge/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client reports through.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client is the bridge's broker connection. It remembers its subscriptions
// and replays them after paho reconnects, and it keeps the retained bridge
// status topic current.
//
// All methods are safe for concurrent use.
type Client struct {
	conn   pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	subs registry
	up   atomic.Bool

	mu           sync.RWMutex
	logger       Logger
	onConnect    func()
	onDisconnect func(error)
}

// Connect dials the broker described by cfg and blocks until the first
// CONNACK or defaultConnectTimeout.
//
// The will message on <prefix>/bridge/status is registered before dialling,
// so a crash is visible to subscribers as an "unexpected_disconnect".
//
// Parameters:
//   - cfg: the mqtt section of the bridge configuration
//
// Returns:
//   - *Client: a connected client; call Close to publish the graceful offline status
//   - error: ErrConnectionFailed wrapping the paho error or the timeout
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix},
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })

	c.conn = pahomqtt.NewClient(opts)
	if err := await(c.conn.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The paho connect handler runs on its own goroutine and may lag behind.
	c.up.Store(true)
	return c, nil
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// Close publishes a retained "graceful_shutdown" status, then disconnects.
// It is safe on a nil or never-connected client.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.conn.Publish(c.topics.BridgeStatus(), c.qos(), true, statusMessage(c.cfg.Broker.ClientID, statusOffline, reasonShutdown))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.conn.Disconnect(disconnectQuiesceMillis)
	c.up.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while paho is between connections.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the client holds a live broker connection.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.up.Load() && c.conn.IsConnected()
}

// SetOnConnect registers fn to run after every successful (re)connect, once
// subscriptions have been replayed.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect registers fn to run when the connection drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets the logger for handler failures and connection loss.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

func (c *Client) qos() byte {
	return byte(c.cfg.QoS)
}

func (c *Client) connected() {
	c.up.Store(true)

	c.subs.each(func(s subscription) {
		// A failed replay is retried on the next reconnect.
		c.conn.Subscribe(s.topic, s.qos, c.wrap(s.handler))
	})
	c.conn.Publish(c.topics.BridgeStatus(), c.qos(), true, statusMessage(c.cfg.Broker.ClientID, statusOnline, ""))

	c.mu.RLock()
	fn := c.onConnect
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) lost(err error) {
	c.up.Store(false)

	if logger := c.log(); logger != nil {
		logger.Warn("mqtt connection lost", "error", err)
	}

	c.mu.RLock()
	fn := c.onDisconnect
	c.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}
