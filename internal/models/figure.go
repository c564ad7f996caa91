package models

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of a tracked figure
type State uint8

const (
	// StateNone marks a figure that has not transitioned yet
	StateNone State = iota
	StateEnter
	StateInTransit
	StateExit
)

var stateNames = map[State]string{
	StateEnter:     "ENTER",
	StateInTransit: "IN_TRANSIT",
	StateExit:      "EXIT",
}

// String returns the canonical (uppercase) state name
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// ParseState parses a state name case-insensitively
func ParseState(s string) (State, bool) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for state, name := range stateNames {
		if name == upper {
			return state, true
		}
	}
	return StateNone, false
}

// Point is a pixel coordinate in the working frame
type Point struct {
	X int
	Y int
}

// BoundingBox is an axis-aligned box in working frame pixel coordinates
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Midpoint returns the box centre using integer division
func (b BoundingBox) Midpoint() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Area returns the box area in px²
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// Figure represents a moving object tracked across frames
type Figure struct {
	ID        string
	Box       BoundingBox
	Midpoint  Point
	State     State
	PrevState State
}

// NewFigure creates a figure in the ENTER state with no previous state
func NewFigure(id string, box BoundingBox) *Figure {
	return &Figure{
		ID:       id,
		Box:      box,
		Midpoint: box.Midpoint(),
		State:    StateEnter,
	}
}

// Move updates the bounding box and recomputes the midpoint
func (f *Figure) Move(box BoundingBox) {
	f.Box = box
	f.Midpoint = box.Midpoint()
}

// ChangeState records the current state as previous and moves to state
func (f *Figure) ChangeState(state State) {
	f.PrevState = f.State
	f.State = state
}

// Changed reports whether the figure is new or its state just changed
func (f *Figure) Changed() bool {
	return f.PrevState == StateNone || f.State != f.PrevState
}
