// Package mqtt carries events over an MQTT broker. MQTT keeps no history and
// no per-message metadata, so the schema is not transmitted and the creation
// time of a message is its arrival time.
package mqtt

import (
	"context"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/transport"
)

const inboxSize = 256

// Client wraps a paho MQTT client
type Client struct {
	client pahomqtt.Client
	qos    byte
	logger *zap.Logger
}

// NewClient connects to the broker
func NewClient(cfg config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	client := pahomqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, transport.Wrap("connect", "", fmt.Errorf("failed to connect to MQTT broker: %w", token.Error()))
	}

	return &Client{
		client: client,
		qos:    byte(cfg.QoS),
		logger: logger,
	}, nil
}

// Publish sends payload to topic
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, schemaName, schemaVersion string) error {
	token := c.client.Publish(topic, c.qos, false, payload)
	if err := waitToken(ctx, token); err != nil {
		return transport.Wrap("publish", topic, err)
	}

	c.logger.Debug("published event",
		zap.String("topic", topic),
		zap.String("schema", schemaName),
		zap.String("schema_version", schemaVersion),
	)
	return nil
}

// Subscribe delivers messages from topic to handle, one at a time, until ctx
// is canceled or handle fails
func (c *Client) Subscribe(ctx context.Context, topic string, handle transport.Handler) error {
	inbox := make(chan transport.Message, inboxSize)

	token := c.client.Subscribe(topic, c.qos, func(_ pahomqtt.Client, m pahomqtt.Message) {
		msg := transport.Message{
			Topic:     m.Topic(),
			Data:      m.Payload(),
			CreatedAt: time.Now(),
		}
		select {
		case inbox <- msg:
		case <-ctx.Done():
		}
	})
	if err := waitToken(ctx, token); err != nil {
		return transport.Wrap("subscribe", topic, err)
	}
	defer func() {
		c.client.Unsubscribe(topic).WaitTimeout(time.Second)
	}()

	return deliver(ctx, inbox, handle)
}

// Close disconnects from the broker
func (c *Client) Close() error {
	c.client.Disconnect(250)
	return nil
}

func deliver(ctx context.Context, inbox <-chan transport.Message, handle transport.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-inbox:
			if !ok {
				return nil
			}
			if err := handle(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func waitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
