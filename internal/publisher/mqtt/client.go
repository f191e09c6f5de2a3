// internal/publisher/mqtt/client.go
package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Client is a single broker session used by the publisher.
// Subscriptions are replayed after every reconnect.
type Client struct {
	cli     paho.Client
	timeout time.Duration
	log     zerolog.Logger

	mu        sync.Mutex
	subs      map[string]func(topic string, payload []byte)
	onConnect func()
}

// Config is minimal broker config.
type Config struct {
	Broker   string // tcp://host:1883
	ClientID string
	Username string
	Password string

	// WillTopic receives "offline" (retained) when the session dies.
	WillTopic string

	Timeout time.Duration
}

const (
	qos            byte = 0
	offlinePayload      = "offline"
)

// Dial connects to the broker. One attempt; paho reconnects on its own
// afterwards.
func Dial(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt client: broker required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		timeout: cfg.Timeout,
		log:     logger,
		subs:    map[string]func(string, []byte){},
	}

	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(cfg.Timeout)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetAutoReconnect(true)
	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, offlinePayload, qos, true)
	}
	opts.OnConnect = c.connected
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		c.log.Warn().Err(err).Msg("MQTT connection lost")
	}

	c.cli = paho.NewClient(opts)
	tok := c.cli.Connect()
	if !tok.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt client: connect %s: timeout", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt client: connect %s: %w", cfg.Broker, err)
	}
	return c, nil
}

// OnConnect registers fn to run after every (re)connect, once
// subscriptions have been restored.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// Publish sends one message and waits for it to leave.
func (c *Client) Publish(topic string, retained bool, payload []byte) error {
	return c.wait(c.cli.Publish(topic, qos, retained, payload), "publish "+topic)
}

// Subscribe registers handler for topic. Handlers run on the paho
// delivery goroutine and must not block.
func (c *Client) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()
	return c.subscribe(topic, handler)
}

// Close publishes the will payload by hand and disconnects.
func (c *Client) Close(willTopic string) error {
	if c == nil || c.cli == nil {
		return nil
	}
	var err error
	if willTopic != "" && c.cli.IsConnectionOpen() {
		err = c.Publish(willTopic, true, []byte(offlinePayload))
	}
	c.cli.Disconnect(250)
	return err
}

func (c *Client) subscribe(topic string, handler func(string, []byte)) error {
	tok := c.cli.Subscribe(topic, qos, func(_ paho.Client, m paho.Message) {
		handler(m.Topic(), m.Payload())
	})
	return c.wait(tok, "subscribe "+topic)
}

func (c *Client) connected(_ paho.Client) {
	c.log.Info().Msg("MQTT connected")

	c.mu.Lock()
	subs := make(map[string]func(string, []byte), len(c.subs))
	for t, h := range c.subs {
		subs[t] = h
	}
	fn := c.onConnect
	c.mu.Unlock()

	// Runs on its own goroutine: waiting on tokens inside the paho
	// callback would stall the network loop.
	go func() {
		for t, h := range subs {
			if err := c.subscribe(t, h); err != nil {
				c.log.Error().Err(err).Str("topic", t).Msg("resubscribe failed")
			}
		}
		if fn != nil {
			fn()
		}
	}()
}

func (c *Client) wait(tok paho.Token, op string) error {
	if !tok.WaitTimeout(c.timeout) {
		return fmt.Errorf("mqtt client: %s: timeout", op)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt client: %s: %w", op, err)
	}
	return nil
}
