// Package market provides price data types, price providers, and
// trading-calendar helpers used by the simulation engine.
package market

import (
	"context"
	"time"
)

// Quote is one daily OHLCV row for a ticker. Quotes are immutable once
// loaded from a provider.
type Quote struct {
	Ticker string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Provider supplies historical daily quotes for a ticker over a date range.
// An empty result is a valid "no data" response, not an error.
type Provider interface {
	Prices(ctx context.Context, ticker string, start, end time.Time) ([]Quote, error)
}

// Day truncates t to midnight UTC. All engine date arithmetic happens on
// day boundaries.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BusinessDays enumerates the weekdays between start and end inclusive, in
// chronological order. Exchange holidays are not modeled; a holiday simply
// shows up as a day with no price data and is skipped by the engine.
func BusinessDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := Day(start); !d.After(Day(end)); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days
}
