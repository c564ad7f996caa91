// Package codec encodes and decodes traffic-update payloads: a UTF-8 JSON
// array of {"id", "state"} objects.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/models"
)

// Schema identifies the traffic-update payload on the wire
const (
	SchemaName    = "traffic-update"
	SchemaVersion = "0.1.0"
)

// CodecError reports a payload that is not a well-formed update batch
type CodecError struct {
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("malformed traffic update payload: %v", e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// ValidationError reports a single update with an unknown state
type ValidationError struct {
	Index int
	ID    string
	State string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("update %d (id %q): unknown state %q", e.Index, e.ID, e.State)
}

type wireUpdate struct {
	ID    *string `json:"id"`
	State *string `json:"state"`
}

// EncodeFigures encodes the id and current state of each figure
func EncodeFigures(figures []models.Figure) ([]byte, error) {
	updates := make([]models.Update, len(figures))
	for i, f := range figures {
		updates[i] = models.Update{ID: f.ID, State: f.State}
	}
	return Encode(updates)
}

// Encode serialises updates in order with canonical state names
func Encode(updates []models.Update) ([]byte, error) {
	wire := make([]wireUpdate, len(updates))
	for i, u := range updates {
		if _, ok := models.ParseState(u.State.String()); !ok {
			return nil, fmt.Errorf("update %d (id %q): cannot encode state %v", i, u.ID, u.State)
		}
		id, state := u.ID, u.State.String()
		wire[i] = wireUpdate{ID: &id, State: &state}
	}
	return json.Marshal(wire)
}

// Decode parses a payload into updates, preserving order.
//
// A payload that is not a JSON array of objects carrying both "id" and
// "state" yields a *CodecError and no updates. Updates with an unknown state
// are left out and reported as *ValidationError values joined into the
// returned error; the remaining updates are still returned.
func Decode(data []byte) ([]models.Update, error) {
	var wire []wireUpdate
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &CodecError{Err: err}
	}
	if wire == nil {
		return nil, &CodecError{Err: errors.New("payload is not an array")}
	}

	updates := make([]models.Update, 0, len(wire))
	var errs []error
	for i, w := range wire {
		if w.ID == nil || w.State == nil {
			return nil, &CodecError{Err: fmt.Errorf("update %d is missing id or state", i)}
		}
		state, ok := models.ParseState(*w.State)
		if !ok {
			errs = append(errs, &ValidationError{Index: i, ID: *w.ID, State: *w.State})
			continue
		}
		updates = append(updates, models.Update{ID: *w.ID, State: state})
	}

	return updates, errors.Join(errs...)
}
