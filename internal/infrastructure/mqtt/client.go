package mqtt

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/graylogic-ha/internal/infrastructure/config"
)

// Client is a paho-backed client for tooling that watches and commands a
// device from the broker side (hactl). The device itself never uses it; it
// owns its transport through Dial and Handshake.
//
// Subscriptions are remembered and re-sent after every automatic
// reconnect, because sessions are clean.
//
// All methods are safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	logger Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// Logger receives connection and handler problems. logging.Logger
// satisfies it.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler handles one received message. It runs on a paho
// goroutine; a returned error is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect opens a client connection and waits for the CONNACK.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - logger: Optional; nil discards connection and handler problems
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed wrapping the timeout or broker refusal
func Connect(cfg config.MQTTConfig, logger Logger) (*Client, error) {
	c := &Client{
		logger: logger,
		subs:   make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(pc pahomqtt.Client) { c.resubscribe(pc) })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.warn("MQTT connection lost", "broker", BrokerURL(cfg), "error", err)
	})

	c.paho = pahomqtt.NewClient(opts)
	token := c.paho.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

// Subscribe registers handler for every message matching filter. Wildcards
// + and # are allowed. Retained messages arrive first.
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	switch {
	case filter == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	case !c.connected():
		return ErrNotConnected
	}

	sub := subscription{qos: qos, handler: handler}
	c.mu.Lock()
	c.subs[filter] = sub
	c.mu.Unlock()

	token := c.paho.Subscribe(filter, qos, c.wrap(handler))
	err := wait(token, ErrSubscribeFailed)
	if err != nil {
		c.mu.Lock()
		delete(c.subs, filter)
		c.mu.Unlock()
	}
	return err
}

// Publish sends one message and waits for the broker to accept it.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	case !c.connected():
		return ErrNotConnected
	}

	return wait(c.paho.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// Close disconnects after letting in-flight messages finish.
func (c *Client) Close() error {
	if c.paho != nil {
		c.paho.Disconnect(defaultDisconnectQuiesce)
	}
	return nil
}

func (c *Client) connected() bool {
	return c.paho != nil && c.paho.IsConnectionOpen()
}

// resubscribe restores every subscription after a reconnect.
func (c *Client) resubscribe(pc pahomqtt.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for filter, sub := range c.subs {
		pc.Subscribe(filter, sub.qos, c.wrap(sub.handler))
	}
}

// wrap adapts handler to paho, logging errors and recovering panics.
func (c *Client) wrap(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil && c.logger != nil {
				c.logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

// wait blocks on token for the operation timeout and wraps failures in
// sentinel.
func wait(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(defaultOperationTimeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, defaultOperationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
