package market

import (
	"context"
	"time"
)

// Static serves quotes from an in-memory table. It backs tests and the
// synthetic price feeds used by the CLI demo mode.
type Static struct {
	quotes map[string][]Quote
}

// NewStatic creates a Static provider over the given quotes. The input
// slices are kept as-is; callers should not mutate them afterwards.
func NewStatic(quotes map[string][]Quote) *Static {
	return &Static{quotes: quotes}
}

// Prices returns the quotes for ticker with dates in [start, end]. An
// unknown ticker yields an empty slice.
func (s *Static) Prices(_ context.Context, ticker string, start, end time.Time) ([]Quote, error) {
	var out []Quote
	for _, q := range s.quotes[ticker] {
		if q.Date.Before(Day(start)) || q.Date.After(Day(end)) {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}
