package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Log        LogConfig
	Transport  TransportConfig
	Kafka      KafkaConfig
	InfluxDB   InfluxDBConfig
	Redis      RedisConfig
	MQTT       MQTTConfig
	SQLite     SQLiteConfig
	Source     SourceConfig
	Segmenter  SegmenterConfig
	Tracker    TrackerConfig
	Aggregator AggregatorConfig
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level   string
	Format  string
	Service string
}

// Transport backends
const (
	BackendKafka    = "kafka"
	BackendRedis    = "redis"
	BackendMQTT     = "mqtt"
	BackendInfluxDB = "influxdb"
	BackendSQLite   = "sqlite"
)

// TransportConfig selects the pub/sub backend, the event store and topic names
type TransportConfig struct {
	Backend       string
	Store         string
	UpdatesTopic  string
	FramesTopic   string
	PublishFrames bool
}

// KafkaConfig holds Kafka-related configuration
type KafkaConfig struct {
	Brokers  []string
	GroupID  string
	ClientID string
	Timeout  time.Duration
}

// InfluxDBConfig holds InfluxDB-related configuration
type InfluxDBConfig struct {
	URL         string
	Org         string
	Token       string
	Bucket      string
	Measurement string
}

// RedisConfig holds Redis-related configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Block     time.Duration
	BatchSize int64
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      int
}

// SQLiteConfig holds SQLite event store configuration
type SQLiteConfig struct {
	Path string
}

// SourceConfig holds frame source configuration
type SourceConfig struct {
	Dir string
}

// SegmenterConfig holds motion segmentation tunables
type SegmenterConfig struct {
	Width            int
	Height           int
	BlurSigma        float64
	Alpha            float64
	Threshold        int
	DilateIterations int
	MinArea          int
	MaxArea          int
}

// Matcher strategies
const (
	MatcherGreedy    = "greedy"
	MatcherHungarian = "hungarian"
)

// TrackerConfig holds identity tracker configuration
type TrackerConfig struct {
	MatchRadius float64
	Matcher     string
}

// Rate units
const (
	RatePerSecond = "second"
	RatePerMinute = "minute"
)

// AggregatorConfig holds aggregator configuration
type AggregatorConfig struct {
	RateInterval time.Duration
	RateUnit     string
	TimeZone     string
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Log: LogConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  getEnv("LOG_FORMAT", "json"),
			Service: getEnv("SERVICE_NAME", "traffic-figure-monitor"),
		},
		Transport: TransportConfig{
			Backend:       getEnv("TRANSPORT_BACKEND", BackendKafka),
			Store:         getEnv("EVENT_STORE", BackendInfluxDB),
			UpdatesTopic:  getEnv("UPDATES_TOPIC", "figure-updates-json"),
			FramesTopic:   getEnv("FRAMES_TOPIC", "detection-frames"),
			PublishFrames: getEnvBool("PUBLISH_FRAMES", false),
		},
		Kafka: KafkaConfig{
			Brokers:  getEnvStringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID:  getEnv("KAFKA_GROUP_ID", "traffic-figure-monitor"),
			ClientID: getEnv("KAFKA_CLIENT_ID", "traffic-figure-monitor"),
			Timeout:  getEnvDuration("KAFKA_TIMEOUT", 10*time.Second),
		},
		InfluxDB: InfluxDBConfig{
			URL:         getEnv("INFLUXDB_URL", "http://localhost:8086"),
			Org:         getEnv("INFLUXDB_ORG", "traffic"),
			Token:       getEnv("INFLUX_TOKEN", ""),
			Bucket:      getEnv("INFLUXDB_BUCKET", "traffic-events"),
			Measurement: getEnv("INFLUXDB_MEASUREMENT", "traffic_events"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			Block:     getEnvDuration("REDIS_BLOCK", 5*time.Second),
			BatchSize: int64(getEnvInt("REDIS_BATCH_SIZE", 100)),
		},
		MQTT: MQTTConfig{
			Broker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
			ClientID: getEnv("MQTT_CLIENT_ID", "traffic-figure-monitor"),
			Username: getEnv("MQTT_USERNAME", ""),
			Password: getEnv("MQTT_PASSWORD", ""),
			QoS:      getEnvInt("MQTT_QOS", 1),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "traffic-events.db"),
		},
		Source: SourceConfig{
			Dir: getEnv("FRAME_DIR", "frames"),
		},
		Segmenter: SegmenterConfig{
			Width:            getEnvInt("SEGMENTER_WIDTH", 640),
			Height:           getEnvInt("SEGMENTER_HEIGHT", 480),
			BlurSigma:        getEnvFloat("SEGMENTER_BLUR_SIGMA", 1.1), // 5x5 kernel
			Alpha:            getEnvFloat("SEGMENTER_ALPHA", 0.5),
			Threshold:        getEnvInt("SEGMENTER_THRESHOLD", 25),
			DilateIterations: getEnvInt("SEGMENTER_DILATE_ITERATIONS", 2),
			MinArea:          getEnvInt("SEGMENTER_MIN_AREA", 1000),
			MaxArea:          getEnvInt("SEGMENTER_MAX_AREA", 1000000),
		},
		Tracker: TrackerConfig{
			MatchRadius: getEnvFloat("TRACKER_MATCH_RADIUS", 100),
			Matcher:     getEnv("TRACKER_MATCHER", MatcherGreedy),
		},
		Aggregator: AggregatorConfig{
			RateInterval: getEnvDuration("AGGREGATOR_RATE_INTERVAL", 10*time.Second),
			RateUnit:     getEnv("AGGREGATOR_RATE_UNIT", RatePerMinute),
			TimeZone:     getEnv("AGGREGATOR_TIME_ZONE", "UTC"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	switch c.Transport.Backend {
	case BackendKafka, BackendRedis, BackendMQTT:
	default:
		return fmt.Errorf("unknown transport backend %q", c.Transport.Backend)
	}
	switch c.Transport.Store {
	case BackendInfluxDB, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown event store %q", c.Transport.Store)
	}
	if c.Segmenter.Width <= 0 || c.Segmenter.Height <= 0 {
		return fmt.Errorf("invalid working resolution %dx%d", c.Segmenter.Width, c.Segmenter.Height)
	}
	if c.Segmenter.Alpha <= 0 || c.Segmenter.Alpha > 1 {
		return fmt.Errorf("segmenter alpha must be in (0,1], got %v", c.Segmenter.Alpha)
	}
	if c.Segmenter.Threshold < 0 || c.Segmenter.Threshold > 255 {
		return fmt.Errorf("segmenter threshold must be in [0,255], got %d", c.Segmenter.Threshold)
	}
	if c.Segmenter.DilateIterations < 0 {
		return fmt.Errorf("negative dilate iterations %d", c.Segmenter.DilateIterations)
	}
	if c.Segmenter.MinArea > c.Segmenter.MaxArea {
		return fmt.Errorf("min area %d exceeds max area %d", c.Segmenter.MinArea, c.Segmenter.MaxArea)
	}
	if c.Tracker.MatchRadius <= 0 {
		return fmt.Errorf("match radius must be positive, got %v", c.Tracker.MatchRadius)
	}
	switch c.Tracker.Matcher {
	case MatcherGreedy, MatcherHungarian:
	default:
		return fmt.Errorf("unknown matcher %q", c.Tracker.Matcher)
	}
	switch c.Aggregator.RateUnit {
	case RatePerSecond, RatePerMinute:
	default:
		return fmt.Errorf("unknown rate unit %q", c.Aggregator.RateUnit)
	}
	if _, err := time.LoadLocation(c.Aggregator.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.Aggregator.TimeZone, err)
	}
	return nil
}

// Location returns the time zone used to bucket daily counts
func (c AggregatorConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.Split(value, ",")
	}
	return defaultValue
}
