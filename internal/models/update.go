package models

import (
	"time"
)

// Update is a single {id, state} pair carried in a traffic-update event
type Update struct {
	ID    string
	State State
}

// DailyCount represents the number of first-seen figures on one calendar day
type DailyCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// RatePoint represents the vehicle rate observed at a point in time.
// Defined is false when no time has elapsed since the aggregator started.
type RatePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Rate      float64   `json:"rate"`
	Total     int       `json:"total"`
	Live      int       `json:"live"`
	Defined   bool      `json:"defined"`
}
