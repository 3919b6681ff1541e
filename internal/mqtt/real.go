package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/vending-controller/internal/hsm"
	"github.com/sweeney/vending-controller/internal/logger"
)

const (
	defaultBufferSize   = 256
	defaultCommandQueue = 32
	publishTimeout      = 5 * time.Second
	connectTimeout      = 10 * time.Second
)

// ClientOptions configures a RealClient.
type ClientOptions struct {
	Broker     string
	MachineID  string
	ClientID   string // defaults to "vending-<machine id>-<random>"
	BufferSize int    // messages kept while offline, defaults to 256
	Logger     *slog.Logger
	Clock      func() time.Time
}

// RealClient talks to an actual MQTT broker. Commands received on the
// command topic are decoded and delivered on Commands(). Messages published
// while the connection is down are buffered and replayed on reconnect.
type RealClient struct {
	client   paho.Client
	topics   Topics
	logger   *slog.Logger
	clock    func() time.Time
	commands chan hsm.Event

	mu     sync.Mutex
	buffer *ringBuffer
	// reconnected is set after the first connection so later connects
	// announce themselves with RECONNECTED.
	reconnected bool
}

// NewRealClient connects to the broker and subscribes to the command topic.
func NewRealClient(opts ClientOptions) (*RealClient, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.ClientID == "" {
		opts.ClientID = "vending-" + opts.MachineID + "-" + uuid.NewString()[:8]
	}

	log := opts.Logger.With(logger.Component("mqtt"))
	c := &RealClient{
		topics:   NewTopics(opts.MachineID),
		logger:   log,
		clock:    opts.Clock,
		commands: make(chan hsm.Event, defaultCommandQueue),
		buffer:   newRingBuffer(opts.BufferSize, log),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: opts.Clock(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	pahoOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(c.topics.System, will, 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.logger.Warn("connection lost", logger.Error(err))
		})

	c.client = paho.NewClient(pahoOpts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.New("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

// Commands delivers decoded commands. Undecodable messages are logged and
// dropped.
func (c *RealClient) Commands() <-chan hsm.Event {
	return c.commands
}

// Topics returns the topics this client uses.
func (c *RealClient) Topics() Topics {
	return c.topics
}

// onConnect runs on every (re)connection: subscribe, announce and replay.
func (c *RealClient) onConnect(client paho.Client) {
	token := client.Subscribe(c.topics.Commands, 1, c.onMessage)
	if !token.WaitTimeout(publishTimeout) {
		c.logger.Error("subscribe timed out", slog.String("topic", c.topics.Commands))
	} else if err := token.Error(); err != nil {
		c.logger.Error("subscribe failed", slog.String("topic", c.topics.Commands), logger.Error(err))
	}

	c.mu.Lock()
	again := c.reconnected
	c.reconnected = true
	pending := c.buffer.drainAll()
	c.mu.Unlock()

	if again {
		c.logger.Info("reconnected", slog.Int("buffered", len(pending)))
		if payload, err := FormatSystemPayload(SystemEvent{Timestamp: c.clock(), Event: "RECONNECTED"}); err == nil {
			client.Publish(c.topics.System, 1, false, payload)
		}
	}
	for _, m := range pending {
		client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

func (c *RealClient) onMessage(_ paho.Client, msg paho.Message) {
	ev, err := DecodeCommand(msg.Payload())
	if err != nil {
		c.logger.Warn("dropping command", slog.String("topic", msg.Topic()), logger.Error(err))
		return
	}
	select {
	case c.commands <- ev:
	default:
		c.logger.Warn("command queue full, dropping command", logger.Event(string(ev.Tag())))
	}
}

// Publish sends the result of one processed event.
func (c *RealClient) Publish(r Result) error {
	payload, err := FormatPayload(r)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return c.publish(c.topics.Events, 0, false, payload)
}

// PublishSystem sends a system lifecycle event.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return c.publish(c.topics.System, 1, event.Retained, payload)
}

func (c *RealClient) publish(topic string, qos byte, retained bool, payload []byte) error {
	// Checked under mu: onConnect drains under mu after the connection is
	// marked open, so nothing can be buffered behind a finished drain.
	c.mu.Lock()
	if !c.client.IsConnectionOpen() {
		c.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Buffered returns the number of messages waiting for a connection.
func (c *RealClient) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.len()
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close unsubscribes and disconnects from the broker.
func (c *RealClient) Close() error {
	if c.client.IsConnectionOpen() {
		c.client.Unsubscribe(c.topics.Commands).WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(1000)
	return nil
}
