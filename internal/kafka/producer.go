package kafka

import (
	"context"
	"time"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/transport"
)

const (
	headerSchemaName    = "schema_name"
	headerSchemaVersion = "schema_version"
)

// Producer publishes events synchronously. All messages share one key so a
// source's events land on a single partition in order.
type Producer struct {
	producer sarama.SyncProducer
	key      string
	logger   *zap.Logger
}

// NewProducer connects a synchronous producer to the brokers
func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) (*Producer, error) {
	saramaConfig := newSaramaConfig(cfg)

	sp, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, transport.Wrap("connect", "", err)
	}
	return newProducer(sp, cfg.ClientID, logger), nil
}

func newProducer(sp sarama.SyncProducer, key string, logger *zap.Logger) *Producer {
	return &Producer{producer: sp, key: key, logger: logger}
}

// Publish sends payload to topic with the schema carried in record headers
func (p *Producer) Publish(ctx context.Context, topic string, payload []byte, schemaName, schemaVersion string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(p.key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerSchemaName), Value: []byte(schemaName)},
			{Key: []byte(headerSchemaVersion), Value: []byte(schemaVersion)},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return transport.Wrap("publish", topic, err)
	}

	p.logger.Debug("published event",
		zap.String("topic", topic),
		zap.String("schema", schemaName),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Close flushes and closes the producer
func (p *Producer) Close() error {
	return p.producer.Close()
}

func newSaramaConfig(cfg config.KafkaConfig) *sarama.Config {
	saramaConfig := sarama.NewConfig()
	// Record headers and timestamps need 0.11+.
	saramaConfig.Version = sarama.V2_1_0_0
	saramaConfig.ClientID = cfg.ClientID
	saramaConfig.Net.DialTimeout = cfg.Timeout
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Timeout = cfg.Timeout
	return saramaConfig
}
