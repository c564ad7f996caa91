package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendKafka, cfg.Transport.Backend)
	assert.Equal(t, BackendInfluxDB, cfg.Transport.Store)
	assert.Equal(t, "figure-updates-json", cfg.Transport.UpdatesTopic)
	assert.Equal(t, "detection-frames", cfg.Transport.FramesTopic)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)

	assert.Equal(t, 640, cfg.Segmenter.Width)
	assert.Equal(t, 480, cfg.Segmenter.Height)
	assert.Equal(t, 0.5, cfg.Segmenter.Alpha)
	assert.Equal(t, 25, cfg.Segmenter.Threshold)
	assert.Equal(t, 2, cfg.Segmenter.DilateIterations)
	assert.Equal(t, 1000, cfg.Segmenter.MinArea)
	assert.Equal(t, 1000000, cfg.Segmenter.MaxArea)

	assert.Equal(t, 100.0, cfg.Tracker.MatchRadius)
	assert.Equal(t, MatcherGreedy, cfg.Tracker.Matcher)
	assert.Equal(t, RatePerMinute, cfg.Aggregator.RateUnit)
	assert.Equal(t, time.UTC, cfg.Aggregator.Location())
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("TRANSPORT_BACKEND", "redis")
	t.Setenv("EVENT_STORE", "sqlite")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("SEGMENTER_ALPHA", "0.25")
	t.Setenv("SEGMENTER_DILATE_ITERATIONS", "3")
	t.Setenv("TRACKER_MATCHER", "hungarian")
	t.Setenv("AGGREGATOR_RATE_INTERVAL", "2s")
	t.Setenv("PUBLISH_FRAMES", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Transport.Backend)
	assert.Equal(t, BackendSQLite, cfg.Transport.Store)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 0.25, cfg.Segmenter.Alpha)
	assert.Equal(t, 3, cfg.Segmenter.DilateIterations)
	assert.Equal(t, MatcherHungarian, cfg.Tracker.Matcher)
	assert.Equal(t, 2*time.Second, cfg.Aggregator.RateInterval)
	assert.True(t, cfg.Transport.PublishFrames)
}

func TestLoad_MalformedValueFallsBackToDefault(t *testing.T) {
	t.Setenv("SEGMENTER_THRESHOLD", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Segmenter.Threshold)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown backend", "TRANSPORT_BACKEND", "carrier-pigeon"},
		{"unknown store", "EVENT_STORE", "tape"},
		{"alpha too large", "SEGMENTER_ALPHA", "1.5"},
		{"zero radius", "TRACKER_MATCH_RADIUS", "0"},
		{"unknown matcher", "TRACKER_MATCHER", "psychic"},
		{"unknown rate unit", "AGGREGATOR_RATE_UNIT", "fortnight"},
		{"bad time zone", "AGGREGATOR_TIME_ZONE", "Mars/Olympus"},
		{"min above max", "SEGMENTER_MIN_AREA", "2000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
