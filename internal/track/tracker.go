package track

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/models"
)

// Tracker owns the live figure set for one frame source
type Tracker struct {
	matcher Matcher
	newID   func() string
	live    []*models.Figure
	logger  *zap.Logger
}

// Option customises a Tracker
type Option func(*Tracker)

// WithIDGenerator replaces the uuid-based id generator
func WithIDGenerator(fn func() string) Option {
	return func(t *Tracker) { t.newID = fn }
}

// NewTracker creates a tracker with an empty live set
func NewTracker(matcher Matcher, logger *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		matcher: matcher,
		newID:   uuid.NewString,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Update associates this frame's boxes with the live figures, advances their
// states and returns copies of the figures that are new or changed state.
// Figures that exit are dropped from the live set.
func (t *Tracker) Update(boxes []models.BoundingBox) []models.Figure {
	existing := t.live
	assigned := t.matcher.Match(boxes, existing)

	matched := make([]bool, len(existing))
	next := make([]*models.Figure, len(existing), len(existing)+len(boxes))
	copy(next, existing)

	for i, box := range boxes {
		j := -1
		if i < len(assigned) {
			j = assigned[i]
		}
		if j >= 0 && j < len(existing) && !matched[j] {
			f := existing[j]
			f.Move(box)
			f.ChangeState(models.StateInTransit)
			matched[j] = true
			continue
		}

		f := models.NewFigure(t.newID(), box)
		next = append(next, f)
		t.logger.Debug("figure entered",
			zap.String("id", f.ID),
			zap.Int("x", box.X),
			zap.Int("y", box.Y),
		)
	}

	for j, f := range existing {
		if !matched[j] {
			f.ChangeState(models.StateExit)
		}
	}

	var changed []models.Figure
	live := next[:0]
	for _, f := range next {
		if f.Changed() {
			changed = append(changed, *f)
		}
		if f.State != models.StateExit {
			live = append(live, f)
		}
	}
	clear(next[len(live):])
	t.live = live

	return changed
}

// Live returns copies of the figures currently on screen
func (t *Tracker) Live() []models.Figure {
	out := make([]models.Figure, len(t.live))
	for i, f := range t.live {
		out[i] = *f
	}
	return out
}
