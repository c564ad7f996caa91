// Package backend opens the transport and event store selected by
// configuration.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/influxdb"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/kafka"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/mqtt"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/redisstream"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/sqlite"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/transport"
)

// OpenPublisher connects the configured transport for publishing
func OpenPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (transport.Publisher, error) {
	switch cfg.Transport.Backend {
	case config.BackendKafka:
		p, err := kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BackendRedis:
		s, err := openRedis(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendMQTT:
		c, err := mqtt.NewClient(cfg.MQTT, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown transport backend %q", cfg.Transport.Backend)
	}
}

// OpenSubscriber connects the configured transport for consuming
func OpenSubscriber(ctx context.Context, cfg *config.Config, logger *zap.Logger) (transport.Subscriber, error) {
	switch cfg.Transport.Backend {
	case config.BackendKafka:
		c, err := kafka.NewConsumer(cfg.Kafka.ClientID, cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendRedis:
		s, err := openRedis(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendMQTT:
		c, err := mqtt.NewClient(cfg.MQTT, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown transport backend %q", cfg.Transport.Backend)
	}
}

// OpenStore opens the configured event store and reports whether consumed
// messages must be archived into it. A Redis store shares the Redis
// transport's stream, which already holds every published event.
func OpenStore(ctx context.Context, cfg *config.Config, subscriber transport.Subscriber, logger *zap.Logger) (transport.Store, bool, error) {
	switch cfg.Transport.Store {
	case config.BackendInfluxDB:
		c, err := influxdb.NewClient(cfg.InfluxDB, logger)
		if err != nil {
			return nil, false, err
		}
		return c, true, nil
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLite.Path, logger)
		if err != nil {
			return nil, false, err
		}
		return s, true, nil
	case config.BackendRedis:
		if s, ok := subscriber.(*redisstream.Stream); ok {
			return s, false, nil
		}
		s, err := openRedis(ctx, cfg, logger)
		if err != nil {
			return nil, false, err
		}
		return s, true, nil
	default:
		return nil, false, fmt.Errorf("unknown event store %q", cfg.Transport.Store)
	}
}

func openRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redisstream.Stream, error) {
	s := redisstream.New(redisstream.NewClient(cfg.Redis), cfg.Redis, logger)
	if err := s.Ping(ctx); err != nil {
		s.Close()
		return nil, err
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	return s, nil
}
