package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/redisstream"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/sqlite"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/transport"
)

func redisConfig(t *testing.T) *config.Config {
	t.Helper()
	mr := miniredis.RunT(t)
	return &config.Config{
		Transport: config.TransportConfig{
			Backend: config.BackendRedis,
			Store:   config.BackendRedis,
		},
		Redis: config.RedisConfig{Addr: mr.Addr()},
	}
}

func TestOpenStore_SharesRedisTransport(t *testing.T) {
	ctx := context.Background()
	cfg := redisConfig(t)

	sub, err := OpenSubscriber(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer sub.Close()

	store, archived, err := OpenStore(ctx, cfg, sub, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, archived)
	assert.Same(t, sub.(*redisstream.Stream), store.(*redisstream.Stream))
}

func TestOpenStore_SQLiteArchivesSeparately(t *testing.T) {
	ctx := context.Background()
	cfg := redisConfig(t)
	cfg.Transport.Store = config.BackendSQLite
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "events.db")

	sub, err := OpenSubscriber(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer sub.Close()

	store, archived, err := OpenStore(ctx, cfg, sub, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	assert.True(t, archived)
	assert.IsType(t, &sqlite.Store{}, store)
}

func TestOpenPublisher_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Transport: config.TransportConfig{Backend: config.BackendRedis},
		Redis:     config.RedisConfig{Addr: mr.Addr()},
	}
	mr.Close()

	_, err := OpenPublisher(context.Background(), cfg, zap.NewNop())
	var terr *transport.Error
	assert.True(t, errors.As(err, &terr))
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := &config.Config{Transport: config.TransportConfig{Backend: "smoke-signals", Store: "clay-tablets"}}
	ctx := context.Background()

	_, err := OpenPublisher(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
	_, err = OpenSubscriber(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
	_, _, err = OpenStore(ctx, cfg, nil, zap.NewNop())
	assert.Error(t, err)
}
