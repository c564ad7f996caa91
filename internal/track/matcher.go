package track

import (
	"math"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/models"
)

// Matcher assigns candidate boxes to live figures.
// The result has one entry per box: the index into live, or -1 when the box
// starts a new figure. No live index may appear twice.
type Matcher interface {
	Match(boxes []models.BoundingBox, live []*models.Figure) []int
}

// NewMatcher returns the matcher named by the tracker configuration
func NewMatcher(cfg config.TrackerConfig) Matcher {
	if cfg.Matcher == config.MatcherHungarian {
		return HungarianMatcher{Radius: cfg.MatchRadius}
	}
	return GreedyMatcher{Radius: cfg.MatchRadius}
}

// GreedyMatcher matches each box, in order, to the first unmatched live
// figure whose midpoint lies strictly within Radius.
type GreedyMatcher struct {
	Radius float64
}

func (g GreedyMatcher) Match(boxes []models.BoundingBox, live []*models.Figure) []int {
	assigned := make([]int, len(boxes))
	taken := make([]bool, len(live))

	for i, box := range boxes {
		assigned[i] = -1
		mid := box.Midpoint()
		for j, f := range live {
			if taken[j] {
				continue
			}
			if distance(mid, f.Midpoint) < g.Radius {
				assigned[i] = j
				taken[j] = true
				break
			}
		}
	}
	return assigned
}

// HungarianMatcher minimises the total midpoint distance over pairs closer
// than Radius, charging Radius for every box or figure left unmatched.
type HungarianMatcher struct {
	Radius float64
}

func (h HungarianMatcher) Match(boxes []models.BoundingBox, live []*models.Figure) []int {
	if len(boxes) == 0 {
		return nil
	}

	cost := make([][]float64, len(boxes))
	for i, box := range boxes {
		mid := box.Midpoint()
		cost[i] = make([]float64, len(live))
		for j, f := range live {
			cost[i][j] = distance(mid, f.Midpoint)
		}
	}

	if len(live) == 0 {
		assigned := make([]int, len(boxes))
		for i := range assigned {
			assigned[i] = -1
		}
		return assigned
	}
	return hungarianAssign(cost, h.Radius)
}

func distance(a, b models.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}
