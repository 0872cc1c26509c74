package mqtt

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/config"
	"github.com/eddielth/signal-monitor/logger"
)

const (
	connectTimeout   = 10 * time.Second
	subscribeTimeout = 5 * time.Second
	handleTimeout    = 30 * time.Second
)

// MessageHandler is called for every message on a subscribed topic
type MessageHandler func(topic string, payload []byte)

// Client is a paho connection that (re)subscribes to the configured topic
// filters every time it connects.
type Client struct {
	client  mqtt.Client
	config  config.MQTTConfig
	handler MessageHandler
}

// Manager owns the broker connection and feeds every message to the ingest
// handler.
type Manager struct {
	client  *Client
	handler *Handler
}

// NewManager creates the MQTT manager. It does not connect yet.
func NewManager(cfg config.MQTTConfig, handler *Handler) (*Manager, error) {
	m := &Manager{handler: handler}

	c, err := newClient(cfg, m.onMessage)
	if err != nil {
		return nil, errors.Wrap(err, "initialize MQTT client")
	}
	m.client = c
	return m, nil
}

// onMessage runs on paho's callback goroutine. A failing message is logged
// and dropped so the subscription keeps going.
func (m *Manager) onMessage(topic string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if err := m.handler.Handle(ctx, topic, payload); err != nil {
		logger.Error("failed to ingest message on %s: %v", topic, err)
	}
}

// Start connects to the broker. Subscriptions are made by the connect
// handler.
func (m *Manager) Start() error {
	return m.client.Connect()
}

// Run starts the manager and disconnects when ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	m.Stop()
	return nil
}

// Stop disconnects from the broker
func (m *Manager) Stop() {
	m.client.Disconnect()
}

func newClient(cfg config.MQTTConfig, handler MessageHandler) (*Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New("MQTT broker address cannot be empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("signal-monitor-%d", time.Now().Unix())
	}

	c := &Client{config: cfg, handler: handler}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(c.subscribeAll).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Error("MQTT connection lost: %v", err)
		}).
		SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
			logger.Info("trying to reconnect to MQTT broker %s", cfg.Broker)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect connects to the MQTT broker
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.Errorf("connection to MQTT broker %s timed out", c.config.Broker)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "connect to MQTT broker %s", c.config.Broker)
	}

	logger.Info("connected to MQTT broker: %s", c.config.Broker)
	return nil
}

// subscribeAll runs after every successful (re)connect.
func (c *Client) subscribeAll(client mqtt.Client) {
	if len(c.config.Topics) == 0 {
		logger.Warn("no MQTT topics configured")
		return
	}

	filters := make(map[string]byte, len(c.config.Topics))
	for _, topic := range c.config.Topics {
		filters[topic] = c.config.QoS
	}

	token := client.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		logger.Debug("received message from topic %s", msg.Topic())
		c.handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(subscribeTimeout) {
		logger.Error("subscription to %v timed out", c.config.Topics)
		return
	}
	if err := token.Error(); err != nil {
		logger.Error("failed to subscribe to %v: %v", c.config.Topics, err)
		return
	}

	logger.Info("subscribed to topics: %v", c.config.Topics)
}

// Disconnect disconnects from the MQTT broker
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	logger.Info("disconnected from MQTT broker")
}
