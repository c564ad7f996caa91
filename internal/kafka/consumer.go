package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/transport"
)

// Consumer represents a Kafka consumer group member
type Consumer struct {
	id       string
	config   config.KafkaConfig
	consumer sarama.ConsumerGroup
	logger   *zap.Logger
	// serialises handler calls across partition claims
	handleMu sync.Mutex
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(id string, cfg config.KafkaConfig, logger *zap.Logger) (*Consumer, error) {
	saramaConfig := newSaramaConfig(cfg)
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	saramaConfig.Consumer.Fetch.Min = 1
	saramaConfig.Consumer.Fetch.Default = 1024 * 1024 // 1MB
	saramaConfig.Consumer.MaxWaitTime = 250 * time.Millisecond

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, transport.Wrap("connect", "", err)
	}

	return &Consumer{
		id:       id,
		config:   cfg,
		consumer: client,
		logger:   logger.With(zap.String("consumer", id)),
	}, nil
}

// Subscribe consumes topic until ctx is canceled, the group is closed or
// handle fails
func (c *Consumer) Subscribe(ctx context.Context, topic string, handle transport.Handler) error {
	go func() {
		for err := range c.consumer.Errors() {
			c.logger.Warn("consumer group error", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := &consumerGroupHandler{
		consumer: c,
		handle:   handle,
		cancel:   cancel,
	}

	for {
		err := c.consumer.Consume(ctx, []string{topic}, handler)
		if failure := handler.failure(); failure != nil {
			return failure
		}
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || errors.Is(err, context.Canceled) {
				return nil
			}
			return transport.Wrap("subscribe", topic, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group
func (c *Consumer) Close() error {
	return c.consumer.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	handle   transport.Handler
	// ends the session when handle fails
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func (h *consumerGroupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for message := range claim.Messages() {
		if ctx.Err() != nil {
			return nil
		}

		h.consumer.handleMu.Lock()
		err := h.handle(ctx, toMessage(message))
		h.consumer.handleMu.Unlock()
		if err != nil {
			h.fail(err)
			return err
		}

		session.MarkMessage(message, "")
	}
	return nil
}

func (h *consumerGroupHandler) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		h.err = err
	}
	h.cancel()
}

func (h *consumerGroupHandler) failure() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// toMessage converts a consumed record, reading the schema from its headers
func toMessage(msg *sarama.ConsumerMessage) transport.Message {
	out := transport.Message{
		Topic:     msg.Topic,
		Data:      msg.Value,
		CreatedAt: msg.Timestamp,
	}
	for _, h := range msg.Headers {
		if h == nil {
			continue
		}
		switch string(h.Key) {
		case headerSchemaName:
			out.SchemaName = string(h.Value)
		case headerSchemaVersion:
			out.SchemaVersion = string(h.Value)
		}
	}
	return out
}
