package sim

import "math"

// tradingDaysPerYear annualizes daily return statistics.
const tradingDaysPerYear = 252

// Metrics summarizes a value history. Pointer fields are nil, never NaN,
// whenever the history is too short to define them.
type Metrics struct {
	TotalReturn  float64  `json:"total_return"`
	SharpeRatio  *float64 `json:"sharpe_ratio"`
	SortinoRatio *float64 `json:"sortino_ratio"`
	MaxDrawdown  *float64 `json:"max_drawdown"`
	WinRate      *float64 `json:"win_rate"`
	TotalTrades  *int     `json:"total_trades"`
}

// ComputeMetrics derives performance statistics from the full portfolio
// value history. It recomputes from scratch each call; histories are a few
// hundred points at most and simplicity beats incrementality here.
//
//	values:   daily portfolio values, seeded with the initial capital
//	closedPL: realized P/L per closing execution (sells and covers)
//	trades:   count of all executions with nonzero quantity
func ComputeMetrics(initialCapital float64, values []float64, closedPL []float64, trades int) Metrics {
	m := Metrics{TotalTrades: &trades}

	if len(values) > 0 && initialCapital > 0 {
		final := values[len(values)-1]
		m.TotalReturn = (final/initialCapital - 1) * 100
	}

	returns := dailyReturns(values)

	if len(returns) >= 2 {
		avg := mean(returns)
		if sd := stddev(returns, avg); sd > 0 {
			sharpe := avg / sd * math.Sqrt(tradingDaysPerYear)
			m.SharpeRatio = &sharpe

			var downside []float64
			for _, r := range returns {
				if r < 0 {
					downside = append(downside, r)
				}
			}
			if len(downside) >= 2 {
				if dsd := stddev(downside, mean(downside)); dsd > 0 {
					sortino := avg / dsd * math.Sqrt(tradingDaysPerYear)
					m.SortinoRatio = &sortino
				}
			}
		}
	}

	if len(values) >= 2 {
		dd := maxDrawdown(values)
		m.MaxDrawdown = &dd
	}

	if len(closedPL) > 0 {
		wins := 0
		for _, pl := range closedPL {
			if pl > 0 {
				wins++
			}
		}
		rate := float64(wins) / float64(len(closedPL)) * 100
		m.WinRate = &rate
	}

	return m
}

func dailyReturns(values []float64) []float64 {
	var out []float64
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev <= 0 {
			continue
		}
		out = append(out, values[i]/prev-1)
	}
	return out
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation. Callers guard len(xs) >= 2.
func stddev(xs []float64, mean float64) float64 {
	sum := 0.0
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// maxDrawdown reports the worst peak-to-trough decline as a negative
// percentage, e.g. -12.5 for a 12.5% drawdown.
func maxDrawdown(values []float64) float64 {
	peak := values[0]
	worst := 0.0
	for _, v := range values[1:] {
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			dd := (v - peak) / peak
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst * 100
}
