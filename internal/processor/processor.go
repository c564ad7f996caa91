package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/aggregator"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/codec"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/models"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/transport"
)

// RateSink receives periodic rate samples
type RateSink interface {
	WriteRate(point models.RatePoint)
}

// Processor feeds traffic-update events from a subscription into an
// aggregator
type Processor struct {
	subscriber transport.Subscriber
	aggregator *aggregator.Aggregator
	topic      string
	logger     *zap.Logger

	archive  transport.Appender
	sink     RateSink
	onRate   func(models.RatePoint)
	interval time.Duration

	mu      sync.Mutex
	handled int
	skipped int

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option customises a Processor
type Option func(*Processor)

// WithArchive persists every raw message before it is decoded
func WithArchive(archive transport.Appender) Option {
	return func(p *Processor) { p.archive = archive }
}

// WithRateSink writes the aggregator's rate to sink every interval
func WithRateSink(sink RateSink, interval time.Duration) Option {
	return func(p *Processor) {
		p.sink = sink
		p.interval = interval
	}
}

// WithRateCallback reports the rate after each handled event
func WithRateCallback(fn func(models.RatePoint)) Option {
	return func(p *Processor) { p.onRate = fn }
}

// NewProcessor creates a new processor
func NewProcessor(subscriber transport.Subscriber, agg *aggregator.Aggregator, topic string, logger *zap.Logger, opts ...Option) *Processor {
	p := &Processor{
		subscriber: subscriber,
		aggregator: agg,
		topic:      topic,
		logger:     logger,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.sink != nil && p.interval > 0 {
		p.wg.Add(1)
		go p.periodicFlush()
	}
	return p
}

// Run consumes the topic until ctx is canceled or the subscription fails
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("consuming traffic updates", zap.String("topic", p.topic))
	err := p.subscriber.Subscribe(ctx, p.topic, p.Handle)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// Handle processes one event. Malformed payloads are logged and skipped;
// only archive failures are returned.
func (p *Processor) Handle(ctx context.Context, msg transport.Message) error {
	if p.archive != nil {
		if err := p.archive.Append(ctx, msg); err != nil {
			return transport.Wrap("append", msg.Topic, err)
		}
	}

	updates, err := codec.Decode(msg.Data)
	if err != nil {
		var codecErr *codec.CodecError
		if errors.As(err, &codecErr) {
			p.logger.Warn("skipping malformed traffic update",
				zap.String("topic", msg.Topic),
				zap.Int("bytes", len(msg.Data)),
				zap.Error(err),
			)
			p.count(false)
			return nil
		}
		p.logger.Warn("dropping invalid updates", zap.Error(err))
	}

	p.aggregator.Apply(updates)
	p.count(true)

	if p.onRate != nil {
		p.onRate(p.aggregator.VehicleRate())
	}
	return nil
}

// Stats returns the number of events applied and skipped
func (p *Processor) Stats() (handled, skipped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handled, p.skipped
}

func (p *Processor) count(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ok {
		p.handled++
	} else {
		p.skipped++
	}
}

// Stop stops the periodic flusher and writes a final rate sample
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.wg.Wait()

		if p.sink != nil {
			p.flush()
		}
		handled, skipped := p.Stats()
		p.logger.Info("processor stopped",
			zap.Int("handled", handled),
			zap.Int("skipped", skipped),
			zap.Int("live", p.aggregator.LiveCount()),
			zap.Int("total", p.aggregator.Total()),
		)
	})
}

func (p *Processor) flush() {
	point := p.aggregator.VehicleRate()
	p.sink.WriteRate(point)
	p.logger.Debug("rate flushed",
		zap.Float64("rate", point.Rate),
		zap.Int("live", point.Live),
		zap.Int("total", point.Total),
	)
}

func (p *Processor) periodicFlush() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.flush()
		case <-p.stop:
			return
		}
	}
}
