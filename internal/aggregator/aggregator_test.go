package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/models"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/transport"
)

type fakeHistory struct {
	msgs []transport.Message
	err  error
}

func (f *fakeHistory) Query(ctx context.Context, topic string, visit transport.Handler) error {
	if f.err != nil {
		return f.err
	}
	for _, m := range f.msgs {
		if err := visit(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func aggregatorConfig() config.AggregatorConfig {
	return config.AggregatorConfig{RateUnit: config.RatePerMinute, TimeZone: "UTC"}
}

func newTestAggregator(history transport.Querier, opts ...Option) *Aggregator {
	return New(aggregatorConfig(), history, "figure-updates-json", zap.NewNop(), opts...)
}

func event(day string, payload string) transport.Message {
	t, err := time.Parse("2006-01-02 15:04", day)
	if err != nil {
		panic(err)
	}
	return transport.Message{Topic: "figure-updates-json", Data: []byte(payload), CreatedAt: t}
}

func TestUpdateVehicle_Lifecycle(t *testing.T) {
	a := newTestAggregator(&fakeHistory{})

	a.UpdateVehicle("a", models.StateEnter)
	assert.Equal(t, 1, a.Total())
	assert.Equal(t, 1, a.LiveCount())

	a.UpdateVehicle("a", models.StateInTransit)
	assert.Equal(t, 1, a.Total())
	state, ok := a.State("a")
	require.True(t, ok)
	assert.Equal(t, models.StateInTransit, state)

	a.UpdateVehicle("a", models.StateExit)
	assert.Equal(t, 1, a.Total())
	assert.Equal(t, 0, a.LiveCount())
	_, ok = a.State("a")
	assert.False(t, ok)
}

func TestUpdateVehicle_ExitIsIdempotent(t *testing.T) {
	a := newTestAggregator(&fakeHistory{})
	a.UpdateVehicle("a", models.StateEnter)
	a.UpdateVehicle("b", models.StateEnter)

	a.UpdateVehicle("a", models.StateExit)
	live, total := a.LiveCount(), a.Total()
	a.UpdateVehicle("a", models.StateExit)
	assert.Equal(t, live, a.LiveCount())
	assert.Equal(t, total, a.Total())

	// Unknown ids are a no-op.
	a.UpdateVehicle("zzz", models.StateExit)
	assert.Equal(t, 1, a.LiveCount())
}

func TestUpdateVehicle_EnterCountsEveryTime(t *testing.T) {
	a := newTestAggregator(&fakeHistory{})
	a.UpdateVehicle("a", models.StateEnter)
	a.UpdateVehicle("a", models.StateEnter)

	assert.Equal(t, 2, a.Total())
	assert.Equal(t, 1, a.LiveCount())
}

func TestUpdateVehicle_InTransitWithoutEnter(t *testing.T) {
	a := newTestAggregator(&fakeHistory{})
	a.UpdateVehicle("late-joiner", models.StateInTransit)

	assert.Equal(t, 0, a.Total())
	assert.Equal(t, 1, a.LiveCount())
}

func TestApply(t *testing.T) {
	a := newTestAggregator(&fakeHistory{})
	a.Apply([]models.Update{
		{ID: "a", State: models.StateEnter},
		{ID: "b", State: models.StateEnter},
		{ID: "a", State: models.StateExit},
	})
	assert.Equal(t, 2, a.Total())
	assert.Equal(t, 1, a.LiveCount())
}

func TestVehicleRate_AtStartIsUndefined(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	a := newTestAggregator(&fakeHistory{}, WithClock(clock.now))
	a.UpdateVehicle("a", models.StateEnter)

	point := a.VehicleRate()
	assert.False(t, point.Defined)
	assert.Zero(t, point.Rate)
	assert.Equal(t, 1, point.Total)
	assert.Equal(t, clock.t, point.Timestamp)
}

func TestVehicleRate_ClockBehindStart(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	a := newTestAggregator(&fakeHistory{}, WithClock(clock.now))
	clock.advance(-time.Second)

	point := a.VehicleRate()
	assert.False(t, point.Defined)
	assert.Zero(t, point.Rate)
}

func TestVehicleRate_PerMinute(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	a := newTestAggregator(&fakeHistory{}, WithClock(clock.now))
	for _, id := range []string{"a", "b", "c"} {
		a.UpdateVehicle(id, models.StateEnter)
	}
	a.UpdateVehicle("a", models.StateExit)
	clock.advance(90 * time.Second)

	point := a.VehicleRate()
	assert.True(t, point.Defined)
	assert.InDelta(t, 2.0, point.Rate, 1e-9)
	assert.Equal(t, 3, point.Total)
	assert.Equal(t, 2, point.Live)
}

func TestVehicleRate_PerSecond(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := aggregatorConfig()
	cfg.RateUnit = config.RatePerSecond
	a := New(cfg, &fakeHistory{}, "t", zap.NewNop(), WithClock(clock.now))
	a.UpdateVehicle("a", models.StateEnter)
	clock.advance(4 * time.Second)

	assert.InDelta(t, 0.25, a.VehicleRate().Rate, 1e-9)
}

func TestDailyCounts_DedupAcrossDays(t *testing.T) {
	history := &fakeHistory{msgs: []transport.Message{
		event("2024-01-01 08:00", `[{"id":"a","state":"ENTER"},{"id":"b","state":"ENTER"}]`),
		event("2024-01-02 09:00", `[{"id":"b","state":"EXIT"},{"id":"c","state":"ENTER"}]`),
	}}
	a := newTestAggregator(history)

	counts, err := a.DailyCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.DailyCount{
		{Day: "2024-01-01", Count: 2},
		{Day: "2024-01-02", Count: 1},
	}, counts)
}

func TestDailyCounts_FirstSightingWinsRegardlessOfState(t *testing.T) {
	history := &fakeHistory{msgs: []transport.Message{
		event("2024-01-03 10:00", `[{"id":"x","state":"IN_TRANSIT"}]`),
		event("2024-01-01 10:00", `[{"id":"x","state":"ENTER"},{"id":"y","state":"ENTER"}]`),
		event("2024-01-05 10:00", `[{"id":"x","state":"ENTER"}]`),
	}}
	a := newTestAggregator(history)

	counts, err := a.DailyCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.DailyCount{
		{Day: "2024-01-01", Count: 1},
		{Day: "2024-01-03", Count: 1},
	}, counts)
}

func TestDailyCounts_SkipsMalformedBatches(t *testing.T) {
	history := &fakeHistory{msgs: []transport.Message{
		event("2024-01-01 08:00", `not json`),
		event("2024-01-01 09:00", `[{"id":"a","state":"ENTER"},{"id":"b","state":"BOGUS"}]`),
		event("2024-01-02 09:00", `[{"id":"b","state":"ENTER"}]`),
	}}
	a := newTestAggregator(history)

	counts, err := a.DailyCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.DailyCount{
		{Day: "2024-01-01", Count: 1},
		{Day: "2024-01-02", Count: 1},
	}, counts)
}

func TestDailyCounts_TimeZone(t *testing.T) {
	history := &fakeHistory{msgs: []transport.Message{
		event("2024-01-02 03:00", `[{"id":"a","state":"ENTER"}]`),
	}}
	cfg := aggregatorConfig()
	cfg.TimeZone = "America/New_York"
	a := New(cfg, history, "t", zap.NewNop())

	counts, err := a.DailyCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.DailyCount{{Day: "2024-01-01", Count: 1}}, counts)
}

func TestDailyCounts_Empty(t *testing.T) {
	a := newTestAggregator(&fakeHistory{})
	counts, err := a.DailyCounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestDailyCounts_QueryFailurePropagates(t *testing.T) {
	cause := errors.New("store unavailable")
	a := newTestAggregator(&fakeHistory{err: cause})

	counts, err := a.DailyCounts(context.Background())
	assert.Nil(t, counts)
	assert.ErrorIs(t, err, cause)

	var terr *transport.Error
	assert.True(t, errors.As(err, &terr))
}

func TestAggregator_ConcurrentAccess(t *testing.T) {
	a := newTestAggregator(&fakeHistory{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_ = a.VehicleRate()
			_ = a.LiveCount()
		}
	}()
	for i := 0; i < 1000; i++ {
		a.UpdateVehicle("a", models.StateEnter)
		a.UpdateVehicle("a", models.StateExit)
	}
	<-done

	assert.Equal(t, 1000, a.Total())
	assert.Equal(t, 0, a.LiveCount())
}
