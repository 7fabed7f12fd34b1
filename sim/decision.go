package sim

import (
	"context"
	"time"

	"backtestd/market"
)

// Decision is one strategy instruction for one ticker on one day.
type Decision struct {
	Action   Action `json:"action"`
	Quantity int64  `json:"quantity"`
}

// StrategyParams selects and weights the strategies consulted each day.
// Weights are passed explicitly per request; there is no process-wide
// weight registry.
type StrategyParams struct {
	Strategies []string           `json:"strategies"`
	Weights    map[string]float64 `json:"weights,omitempty"`
}

// DecisionRequest is the per-day input to a decision provider: the
// tickers under management, the trailing lookback window, and the current
// portfolio state.
type DecisionRequest struct {
	Tickers       []string
	LookbackStart time.Time
	CurrentDate   time.Time
	Portfolio     PortfolioView
	Quotes        map[string][]market.Quote // lookback window per ticker, oldest first
	Params        StrategyParams
}

// DecisionProvider is the capability interface the engine calls once per
// simulated trading day. Implementations may be slow (network, model
// inference) and may fail; the engine treats a failed call as a no-op day.
type DecisionProvider interface {
	Decide(ctx context.Context, req DecisionRequest) (map[string]Decision, error)
}

// DecisionFunc adapts a plain function to the DecisionProvider interface.
type DecisionFunc func(ctx context.Context, req DecisionRequest) (map[string]Decision, error)

func (f DecisionFunc) Decide(ctx context.Context, req DecisionRequest) (map[string]Decision, error) {
	return f(ctx, req)
}
