package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"backtestd/internal/util"
)

// History holds prefetched quotes for a set of tickers. The engine loads
// the full simulation window once up front so the day loop never waits on
// the provider.
type History struct {
	quotes map[string][]Quote // sorted by date ascending
}

// Prefetch loads quotes for every ticker over [start, end] from the
// provider. Transient provider errors are retried with backoff; a ticker
// with no data at all is still valid (the engine skips days with gaps).
func Prefetch(ctx context.Context, p Provider, tickers []string, start, end time.Time) (*History, error) {
	h := &History{quotes: make(map[string][]Quote, len(tickers))}

	for _, ticker := range tickers {
		var rows []Quote
		err := util.Retry(ctx, 3, 500*time.Millisecond, func() error {
			var err error
			rows, err = p.Prices(ctx, ticker, start, end)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("prefetch %s: %w", ticker, err)
		}

		sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
		h.quotes[ticker] = rows
	}

	return h, nil
}

// LatestClose returns the closing price of the most recent quote for
// ticker with a date in [from, to]. The second return value is false when
// the interval holds no data.
func (h *History) LatestClose(ticker string, from, to time.Time) (float64, bool) {
	rows := h.quotes[ticker]
	for i := len(rows) - 1; i >= 0; i-- {
		d := rows[i].Date
		if d.After(to) {
			continue
		}
		if d.Before(from) {
			break
		}
		return rows[i].Close, true
	}
	return 0, false
}

// Window returns the quotes for ticker with dates in [from, to], oldest
// first. Strategies receive this as their lookback context.
func (h *History) Window(ticker string, from, to time.Time) []Quote {
	rows := h.quotes[ticker]

	lo := sort.Search(len(rows), func(i int) bool { return !rows[i].Date.Before(from) })
	hi := sort.Search(len(rows), func(i int) bool { return rows[i].Date.After(to) })

	return rows[lo:hi]
}
