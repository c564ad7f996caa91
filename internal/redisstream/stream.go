// Package redisstream carries events over Redis Streams. A stream doubles as
// the event store: XRANGE replays its full history in ID order.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/transport"
)

const (
	fieldData          = "data"
	fieldSchemaName    = "schema_name"
	fieldSchemaVersion = "schema_version"
	fieldCreatedAt     = "created_at"
)

// Stream publishes, subscribes to and replays topics stored as Redis streams
type Stream struct {
	client    *redis.Client
	block     time.Duration
	batchSize int64
	startID   string
	logger    *zap.Logger
}

// Option customises a Stream
type Option func(*Stream)

// WithStartID sets where new subscriptions begin: "$" (default) for new
// messages only, "0" to replay the stream first.
func WithStartID(id string) Option {
	return func(s *Stream) { s.startID = id }
}

// NewClient creates a Redis client from configuration
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// New wraps a Redis client
func New(client *redis.Client, cfg config.RedisConfig, logger *zap.Logger, opts ...Option) *Stream {
	s := &Stream{
		client:    client,
		block:     cfg.Block,
		batchSize: cfg.BatchSize,
		startID:   "$",
		logger:    logger,
	}
	if s.block <= 0 {
		s.block = 5 * time.Second
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks connectivity
func (s *Stream) Ping(ctx context.Context) error {
	return transport.Wrap("connect", "", s.client.Ping(ctx).Err())
}

// Publish appends payload to the topic stream
func (s *Stream) Publish(ctx context.Context, topic string, payload []byte, schemaName, schemaVersion string) error {
	return s.Append(ctx, transport.Message{
		Topic:         topic,
		Data:          payload,
		SchemaName:    schemaName,
		SchemaVersion: schemaVersion,
		CreatedAt:     time.Now(),
	})
}

// Append adds msg to its topic stream, keeping its creation time
func (s *Stream) Append(ctx context.Context, msg transport.Message) error {
	values := map[string]interface{}{
		fieldData:          msg.Data,
		fieldSchemaName:    msg.SchemaName,
		fieldSchemaVersion: msg.SchemaVersion,
	}
	if !msg.CreatedAt.IsZero() {
		values[fieldCreatedAt] = strconv.FormatInt(msg.CreatedAt.UnixNano(), 10)
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: msg.Topic,
		Values: values,
	}).Result()
	if err != nil {
		return transport.Wrap("publish", msg.Topic, err)
	}

	s.logger.Debug("appended event", zap.String("topic", msg.Topic), zap.String("id", id))
	return nil
}

// Subscribe reads the topic stream from the configured start ID, blocking
// for at most the configured interval between context checks
func (s *Stream) Subscribe(ctx context.Context, topic string, handle transport.Handler) error {
	lastID, err := s.resolveStart(ctx, topic)
	if err != nil {
		return transport.Wrap("subscribe", topic, err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{topic, lastID},
			Count:   s.batchSize,
			Block:   s.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return transport.Wrap("subscribe", topic, err)
		}

		for _, stream := range streams {
			for _, xm := range stream.Messages {
				lastID = xm.ID
				if err := handle(ctx, toMessage(topic, xm)); err != nil {
					return err
				}
			}
		}
	}
}

// resolveStart pins "$" to the newest entry ID ("0" for an empty stream) so
// entries added between two blocking reads are not skipped
func (s *Stream) resolveStart(ctx context.Context, topic string) (string, error) {
	if s.startID != "$" {
		return s.startID, nil
	}
	last, err := s.client.XRevRangeN(ctx, topic, "+", "-", 1).Result()
	if err != nil {
		return "", err
	}
	if len(last) == 0 {
		return "0", nil
	}
	return last[0].ID, nil
}

// Query replays the full topic stream in ID order
func (s *Stream) Query(ctx context.Context, topic string, visit transport.Handler) error {
	start := "-"
	for {
		page, err := s.client.XRangeN(ctx, topic, start, "+", s.batchSize).Result()
		if err != nil {
			return transport.Wrap("query", topic, err)
		}

		for _, xm := range page {
			if err := visit(ctx, toMessage(topic, xm)); err != nil {
				return err
			}
		}

		if int64(len(page)) < s.batchSize {
			return nil
		}
		next, err := nextID(page[len(page)-1].ID)
		if err != nil {
			return transport.Wrap("query", topic, err)
		}
		start = next
	}
}

// Close closes the Redis client
func (s *Stream) Close() error {
	return s.client.Close()
}

func toMessage(topic string, xm redis.XMessage) transport.Message {
	msg := transport.Message{
		Topic:         topic,
		Data:          []byte(stringValue(xm.Values[fieldData])),
		SchemaName:    stringValue(xm.Values[fieldSchemaName]),
		SchemaVersion: stringValue(xm.Values[fieldSchemaVersion]),
	}

	if ns, err := strconv.ParseInt(stringValue(xm.Values[fieldCreatedAt]), 10, 64); err == nil {
		msg.CreatedAt = time.Unix(0, ns)
	} else if ms, err := idMillis(xm.ID); err == nil {
		msg.CreatedAt = time.UnixMilli(ms)
	}
	return msg
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// idMillis returns the millisecond timestamp part of a stream ID
func idMillis(id string) (int64, error) {
	ms, _, _ := strings.Cut(id, "-")
	return strconv.ParseInt(ms, 10, 64)
}

// nextID returns the smallest stream ID greater than id
func nextID(id string) (string, error) {
	msPart, seqPart, ok := strings.Cut(id, "-")
	if !ok {
		return "", fmt.Errorf("malformed stream id %q", id)
	}
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed stream id %q: %w", id, err)
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed stream id %q: %w", id, err)
	}
	if seq == ^uint64(0) {
		return fmt.Sprintf("%d-0", ms+1), nil
	}
	return fmt.Sprintf("%d-%d", ms, seq+1), nil
}
