package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/models"
)

func TestHungarianAssign_Empty(t *testing.T) {
	assert.Nil(t, hungarianAssign(nil, 100))
}

func TestHungarianAssign_SquareOptimal(t *testing.T) {
	// Optimal: row0→col0 (1), row1→col1 (4), row2→col2 (5) = 10
	cost := [][]float64{
		{1, 2, 3},
		{4, 4, 6},
		{9, 8, 5},
	}
	result := hungarianAssign(cost, 100)
	require.Len(t, result, 3)

	total := 0.0
	for i, j := range result {
		require.GreaterOrEqual(t, j, 0, "row %d unassigned", i)
		total += cost[i][j]
	}
	assert.Equal(t, 10.0, total)
}

func TestHungarianAssign_Gated(t *testing.T) {
	cost := [][]float64{
		{1, 2},
		{100, 250},
	}
	result := hungarianAssign(cost, 100)
	require.Len(t, result, 2)
	assert.GreaterOrEqual(t, result[0], 0)
	assert.Equal(t, -1, result[1])
}

func TestHungarianAssign_MoreRowsThanCols(t *testing.T) {
	cost := [][]float64{
		{1, 10},
		{10, 1},
		{5, 5},
	}
	assert.Equal(t, []int{0, 1, -1}, hungarianAssign(cost, 100))

	// The cheaper row wins the single column regardless of row order.
	assert.Equal(t, []int{-1, 0}, hungarianAssign([][]float64{{50}, {3}}, 100))

	cost = [][]float64{
		{40, 500},
		{2, 500},
		{500, 7},
	}
	assert.Equal(t, []int{-1, 0, 1}, hungarianAssign(cost, 100))
}

func TestHungarianAssign_MoreColsThanRows(t *testing.T) {
	cost := [][]float64{
		{7, 1, 9},
	}
	assert.Equal(t, []int{1}, hungarianAssign(cost, 100))
}

func TestHungarianAssign_NothingWithinGate(t *testing.T) {
	cost := [][]float64{
		{150, 300},
		{101, 100},
	}
	assert.Equal(t, []int{-1, -1}, hungarianAssign(cost, 100))
}

func TestHungarianMatcher_PrefersNearerLaterBox(t *testing.T) {
	m := HungarianMatcher{Radius: 100}
	live := []*models.Figure{models.NewFigure("a", models.BoundingBox{X: 100, Y: 0, Width: 20, Height: 20})}
	boxes := []models.BoundingBox{
		{X: 150, Y: 0, Width: 20, Height: 20},
		{X: 103, Y: 0, Width: 20, Height: 20},
	}
	assert.Equal(t, []int{-1, 0}, m.Match(boxes, live))
}

func TestHungarianMatcher_NoLiveFigures(t *testing.T) {
	m := HungarianMatcher{Radius: 100}
	boxes := []models.BoundingBox{{X: 0, Y: 0, Width: 10, Height: 10}}
	assert.Equal(t, []int{-1}, m.Match(boxes, nil))
	assert.Nil(t, m.Match(nil, nil))
}

func TestNewMatcher(t *testing.T) {
	assert.Equal(t, GreedyMatcher{Radius: 50},
		NewMatcher(config.TrackerConfig{MatchRadius: 50, Matcher: config.MatcherGreedy}))
	assert.Equal(t, HungarianMatcher{Radius: 75},
		NewMatcher(config.TrackerConfig{MatchRadius: 75, Matcher: config.MatcherHungarian}))
}

func TestGreedyMatcher_StrictRadius(t *testing.T) {
	m := GreedyMatcher{Radius: 100}
	live := []*models.Figure{models.NewFigure("a", models.BoundingBox{X: 0, Y: 0, Width: 0, Height: 0})}

	assert.Equal(t, []int{-1}, m.Match([]models.BoundingBox{{X: 100, Y: 0}}, live))
	assert.Equal(t, []int{0}, m.Match([]models.BoundingBox{{X: 99, Y: 0}}, live))
}
