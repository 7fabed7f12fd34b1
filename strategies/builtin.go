package strategies

import (
	"context"
	"math"

	"backtestd/market"
	"backtestd/sim"
)

// HoldProvider never trades. Baseline for validating the loop itself.
type HoldProvider struct{}

func (HoldProvider) Decide(_ context.Context, req sim.DecisionRequest) (map[string]sim.Decision, error) {
	out := make(map[string]sim.Decision, len(req.Tickers))
	for _, ticker := range req.Tickers {
		out[ticker] = sim.Decision{Action: sim.Hold}
	}
	return out, nil
}

// Momentum trades a fast/slow moving-average crossover on the lookback
// closes. Fast above slow opens or keeps a long; fast below slow exits it.
type Momentum struct {
	FastDays int
	SlowDays int
	AllocPct float64 // fraction of cash per new position
}

func (m *Momentum) Decide(_ context.Context, req sim.DecisionRequest) (map[string]sim.Decision, error) {
	out := make(map[string]sim.Decision, len(req.Tickers))

	for _, ticker := range req.Tickers {
		closes := closes(req.Quotes[ticker])
		out[ticker] = sim.Decision{Action: sim.Hold}
		if len(closes) < m.SlowDays {
			continue
		}

		fast := meanTail(closes, m.FastDays)
		slow := meanTail(closes, m.SlowDays)
		last := closes[len(closes)-1]
		pos := req.Portfolio.Positions[ticker]

		switch {
		case fast > slow && pos.Long == 0:
			if qty := allocQty(req.Portfolio.Cash, m.AllocPct, last); qty > 0 {
				out[ticker] = sim.Decision{Action: sim.Buy, Quantity: qty}
			}
		case fast < slow && pos.Long > 0:
			out[ticker] = sim.Decision{Action: sim.Sell, Quantity: pos.Long}
		}
	}

	return out, nil
}

// MeanRevert fades moves beyond a band around the trailing average: buys
// dips below it, sells rips above it, and covers or exits as price
// reverts.
type MeanRevert struct {
	Days     int
	Band     float64 // e.g. 0.05 for +/-5%
	AllocPct float64
}

func (m *MeanRevert) Decide(_ context.Context, req sim.DecisionRequest) (map[string]sim.Decision, error) {
	out := make(map[string]sim.Decision, len(req.Tickers))

	for _, ticker := range req.Tickers {
		closes := closes(req.Quotes[ticker])
		out[ticker] = sim.Decision{Action: sim.Hold}
		if len(closes) < m.Days {
			continue
		}

		avg := meanTail(closes, m.Days)
		last := closes[len(closes)-1]
		pos := req.Portfolio.Positions[ticker]

		switch {
		case last < avg*(1-m.Band) && pos.Short > 0:
			out[ticker] = sim.Decision{Action: sim.Cover, Quantity: pos.Short}
		case last < avg*(1-m.Band):
			if qty := allocQty(req.Portfolio.Cash, m.AllocPct, last); qty > 0 {
				out[ticker] = sim.Decision{Action: sim.Buy, Quantity: qty}
			}
		case last > avg*(1+m.Band) && pos.Long > 0:
			out[ticker] = sim.Decision{Action: sim.Sell, Quantity: pos.Long}
		case last > avg*(1+m.Band):
			if qty := allocQty(req.Portfolio.Cash, m.AllocPct, last); qty > 0 {
				out[ticker] = sim.Decision{Action: sim.Short, Quantity: qty}
			}
		}
	}

	return out, nil
}

func closes(quotes []market.Quote) []float64 {
	out := make([]float64, len(quotes))
	for i, q := range quotes {
		out[i] = q.Close
	}
	return out
}

func meanTail(xs []float64, n int) float64 {
	if n > len(xs) {
		n = len(xs)
	}
	tail := xs[len(xs)-n:]
	sum := 0.0
	for _, x := range tail {
		sum += x
	}
	return sum / float64(len(tail))
}

func allocQty(cash, pct, price float64) int64 {
	if price <= 0 {
		return 0
	}
	return int64(math.Floor(cash * pct / price))
}
