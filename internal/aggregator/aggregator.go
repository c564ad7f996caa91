// Package aggregator maintains live vehicle counts and rates from
// traffic-update events and rolls the persisted event history up into
// deduplicated daily totals.
package aggregator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/codec"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/models"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/transport"
)

const dayLayout = "2006-01-02"

// Aggregator tracks vehicles currently on screen and the number that ever
// entered. It is safe for concurrent use.
type Aggregator struct {
	mu       sync.RWMutex
	vehicles map[string]models.State
	total    int
	start    time.Time

	history  transport.Querier
	topic    string
	rateUnit time.Duration
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// Option customises an Aggregator
type Option func(*Aggregator)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New creates an aggregator anchored at the current time. history is
// queried for daily counts of topic.
func New(cfg config.AggregatorConfig, history transport.Querier, topic string, logger *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		vehicles: make(map[string]models.State),
		history:  history,
		topic:    topic,
		rateUnit: time.Minute,
		loc:      cfg.Location(),
		now:      time.Now,
		logger:   logger,
	}
	if cfg.RateUnit == config.RatePerSecond {
		a.rateUnit = time.Second
	}
	for _, opt := range opts {
		opt(a)
	}
	a.start = a.now()
	return a
}

// UpdateVehicle applies one state update. EXIT removes the vehicle, ENTER
// counts it and every non-EXIT state records it as live.
func (a *Aggregator) UpdateVehicle(id string, state models.State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch state {
	case models.StateExit:
		delete(a.vehicles, id)
		return
	case models.StateEnter:
		a.total++
	}
	a.vehicles[id] = state
}

// Apply updates the aggregator with a decoded batch, in order
func (a *Aggregator) Apply(updates []models.Update) {
	for _, u := range updates {
		a.UpdateVehicle(u.ID, u.State)
	}
}

// VehicleRate returns vehicles entered per rate unit since construction:
// total / (elapsed / rateUnit), so a per-minute rate is total*60/seconds.
// With no elapsed time the rate is zero and Defined is false.
func (a *Aggregator) VehicleRate() models.RatePoint {
	now := a.now()

	a.mu.RLock()
	defer a.mu.RUnlock()

	point := models.RatePoint{
		Timestamp: now,
		Total:     a.total,
		Live:      len(a.vehicles),
	}
	elapsed := now.Sub(a.start)
	if elapsed <= 0 {
		return point
	}
	point.Rate = float64(a.total) / (float64(elapsed) / float64(a.rateUnit))
	point.Defined = true
	return point
}

// LiveCount returns the number of vehicles currently on screen
func (a *Aggregator) LiveCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.vehicles)
}

// Total returns the number of ENTER updates seen
func (a *Aggregator) Total() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.total
}

// State returns the last known state of a live vehicle
func (a *Aggregator) State(id string) (models.State, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.vehicles[id]
	return s, ok
}

// DailyCounts replays the topic's history and counts each vehicle id once,
// on the day of the first event that mentions it. Days come from event
// creation times. Malformed batches are skipped; query failures are
// returned as *transport.Error.
func (a *Aggregator) DailyCounts(ctx context.Context) ([]models.DailyCount, error) {
	days := make(map[string]int)
	seen := make(map[string]struct{})

	err := a.history.Query(ctx, a.topic, func(_ context.Context, msg transport.Message) error {
		updates, err := codec.Decode(msg.Data)
		if err != nil {
			var codecErr *codec.CodecError
			if errors.As(err, &codecErr) {
				a.logger.Warn("skipping malformed historical event",
					zap.Time("created_at", msg.CreatedAt),
					zap.Error(err),
				)
				return nil
			}
			a.logger.Warn("historical event has invalid updates", zap.Error(err))
		}

		day := msg.CreatedAt.In(a.loc).Format(dayLayout)
		for _, u := range updates {
			if _, ok := seen[u.ID]; ok {
				continue
			}
			seen[u.ID] = struct{}{}
			days[day]++
		}
		return nil
	})
	if err != nil {
		return nil, transport.Wrap("query", a.topic, err)
	}

	counts := make([]models.DailyCount, 0, len(days))
	for day, n := range days {
		counts = append(counts, models.DailyCount{Day: day, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Day < counts[j].Day })
	return counts, nil
}
