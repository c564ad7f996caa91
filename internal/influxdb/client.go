package influxdb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/models"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/transport"
)

const (
	dataField        = "data"
	rateMeasurement  = "vehicle_rate"
	dailyMeasurement = "daily_vehicle_counts"
	dayLayout        = "2006-01-02"
)

// Client represents an InfluxDB v2 client used both as the event store and
// as the sink for aggregated traffic series
type Client struct {
	client        influxdb2.Client
	writeAPI      api.WriteAPI
	writeBlocking api.WriteAPIBlocking
	queryAPI      api.QueryAPI
	config        config.InfluxDBConfig
	logger        *zap.Logger
}

// NewClient initializes the InfluxDB v2 client and verifies connectivity
func NewClient(cfg config.InfluxDBConfig, logger *zap.Logger) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	if _, err := client.Health(context.Background()); err != nil {
		client.Close()
		return nil, transport.Wrap("connect", "", fmt.Errorf("failed to connect to InfluxDB: %w", err))
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			logger.Warn("influxdb async write failed", zap.Error(err))
		}
	}()

	logger.Info("connected to InfluxDB", zap.String("url", cfg.URL), zap.String("bucket", cfg.Bucket))
	return &Client{
		client:        client,
		writeAPI:      writeAPI,
		writeBlocking: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI:      client.QueryAPI(cfg.Org),
		config:        cfg,
		logger:        logger,
	}, nil
}

// Append persists one event. The write is blocking so a later query sees it.
func (c *Client) Append(ctx context.Context, msg transport.Message) error {
	if err := c.writeBlocking.WritePoint(ctx, eventPoint(c.config.Measurement, msg)); err != nil {
		return transport.Wrap("append", msg.Topic, err)
	}
	return nil
}

// Query replays the events of topic in ascending creation time
func (c *Client) Query(ctx context.Context, topic string, visit transport.Handler) error {
	result, err := c.queryAPI.Query(ctx, eventsQuery(c.config.Bucket, c.config.Measurement, topic))
	if err != nil {
		return transport.Wrap("query", topic, err)
	}
	defer result.Close()

	for result.Next() {
		msg, err := recordToMessage(topic, result.Record())
		if err != nil {
			c.logger.Warn("skipping unreadable event record", zap.String("topic", topic), zap.Error(err))
			continue
		}
		if err := visit(ctx, msg); err != nil {
			return err
		}
	}
	if err := result.Err(); err != nil {
		return transport.Wrap("query", topic, err)
	}
	return nil
}

// WriteRate writes a rate sample. Samples with an undefined rate are skipped.
func (c *Client) WriteRate(point models.RatePoint) {
	if !point.Defined {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(
		rateMeasurement,
		map[string]string{},
		map[string]interface{}{
			"rate":  point.Rate,
			"total": point.Total,
			"live":  point.Live,
		},
		point.Timestamp,
	))
}

// WriteDailyCounts writes one point per day, stamped at the start of the day
func (c *Client) WriteDailyCounts(counts []models.DailyCount, loc *time.Location) error {
	for _, dc := range counts {
		day, err := time.ParseInLocation(dayLayout, dc.Day, loc)
		if err != nil {
			return fmt.Errorf("invalid day %q: %w", dc.Day, err)
		}
		c.writeAPI.WritePoint(write.NewPoint(
			dailyMeasurement,
			map[string]string{"day": dc.Day},
			map[string]interface{}{"count": dc.Count},
			day,
		))
	}
	return nil
}

// Close flushes pending writes and closes the client
func (c *Client) Close() error {
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

func eventPoint(measurement string, msg transport.Message) *write.Point {
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	tags := map[string]string{"topic": msg.Topic}
	if msg.SchemaName != "" {
		tags["schema_name"] = msg.SchemaName
	}
	if msg.SchemaVersion != "" {
		tags["schema_version"] = msg.SchemaVersion
	}
	return write.NewPoint(
		measurement,
		tags,
		map[string]interface{}{
			dataField: string(msg.Data),
		},
		created,
	)
}

// eventsQuery builds the Flux query replaying a topic's events
func eventsQuery(bucket, measurement, topic string) string {
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: 0)
  |> filter(fn: (r) => r._measurement == %s and r.topic == %s and r._field == %q)
  |> group()
  |> sort(columns: ["_time"])`,
		strconv.Quote(bucket), strconv.Quote(measurement), strconv.Quote(topic), dataField)
}

func recordToMessage(topic string, rec *query.FluxRecord) (transport.Message, error) {
	data, ok := rec.Value().(string)
	if !ok {
		return transport.Message{}, fmt.Errorf("unexpected %s value type %T", dataField, rec.Value())
	}

	msg := transport.Message{
		Topic:     topic,
		Data:      []byte(data),
		CreatedAt: rec.Time(),
	}
	if v, ok := rec.ValueByKey("schema_name").(string); ok {
		msg.SchemaName = v
	}
	if v, ok := rec.ValueByKey("schema_version").(string); ok {
		msg.SchemaVersion = v
	}
	return msg, nil
}
