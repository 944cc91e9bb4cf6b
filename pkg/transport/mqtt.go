package transport

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT connection defaults.
const (
	// MQTTQoS is the quality-of-service level for all Tether traffic.
	MQTTQoS = 1

	// mqttConnectTimeout bounds the initial broker connect.
	mqttConnectTimeout = 10 * time.Second

	// mqttDisconnectQuiesce is the grace period for in-flight messages
	// on Close, in milliseconds as the paho API wants it.
	mqttDisconnectQuiesce = 250
)

// MQTTConfig describes a broker-backed connection. Device and gateway
// use mirrored topic pairs: what one publishes the other subscribes to.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883".
	Broker string

	// ClientID identifies this client to the broker.
	ClientID string

	// PublishTopic receives outbound messages.
	PublishTopic string

	// SubscribeTopic carries inbound messages.
	SubscribeTopic string
}

// MQTTConn is a Conn over an MQTT broker. The broker preserves message
// boundaries, so no extra framing is applied.
type MQTTConn struct {
	client mqtt.Client
	cfg    MQTTConfig
	in     chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// DialMQTT connects to the broker and subscribes to the inbound topic.
func DialMQTT(cfg MQTTConfig) (*MQTTConn, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(mqttConnectTimeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to broker %s: %w", cfg.Broker, token.Error())
	}

	c := &MQTTConn{
		client: client,
		cfg:    cfg,
		in:     make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	if token := client.Subscribe(cfg.SubscribeTopic, MQTTQoS, c.onMessage); token.Wait() && token.Error() != nil {
		client.Disconnect(mqttDisconnectQuiesce)
		return nil, fmt.Errorf("subscribing to %s: %w", cfg.SubscribeTopic, token.Error())
	}
	return c, nil
}

func (c *MQTTConn) onMessage(_ mqtt.Client, m mqtt.Message) {
	payload := make([]byte, len(m.Payload()))
	copy(payload, m.Payload())
	select {
	case c.in <- payload:
	case <-c.done:
	}
}

// Send publishes one message to the outbound topic.
func (c *MQTTConn) Send(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if len(data) > DefaultMaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), DefaultMaxMessageSize)
	}
	token := c.client.Publish(c.cfg.PublishTopic, MQTTQoS, false, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", c.cfg.PublishTopic, token.Error())
	}
	return nil
}

// Receive blocks until a message arrives on the inbound topic.
func (c *MQTTConn) Receive() ([]byte, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.done:
		return nil, io.EOF
	}
}

// Close unsubscribes and disconnects from the broker.
func (c *MQTTConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if token := c.client.Unsubscribe(c.cfg.SubscribeTopic); token.Wait() && token.Error() != nil {
			err = token.Error()
		}
		c.client.Disconnect(mqttDisconnectQuiesce)
	})
	return err
}

var _ net.Addr = (*brokerAddr)(nil)

// brokerAddr lets an MQTTConn report where it is connected.
type brokerAddr struct{ url string }

func (a *brokerAddr) Network() string { return "mqtt" }
func (a *brokerAddr) String() string  { return a.url }

// RemoteAddr returns the broker URL as an address.
func (c *MQTTConn) RemoteAddr() net.Addr {
	return &brokerAddr{url: c.cfg.Broker}
}
