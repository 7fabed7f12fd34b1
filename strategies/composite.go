package strategies

import (
	"context"
	"fmt"
	"math"

	"backtestd/sim"
)

type weighted struct {
	name     string
	provider sim.DecisionProvider
	weight   float64
}

// composite consults every selected provider and merges their per-ticker
// decisions by weighted vote. The action with the highest total weight
// wins; its quantity is the weighted average quantity of the providers
// that voted for it. Ties resolve to the less aggressive action.
type composite struct {
	providers []weighted
}

// voteOrder breaks ties deterministically, preferring the action that
// moves the portfolio least.
var voteOrder = map[sim.Action]int{
	sim.Hold:  0,
	sim.Sell:  1,
	sim.Cover: 2,
	sim.Buy:   3,
	sim.Short: 4,
}

func (c *composite) Decide(ctx context.Context, req sim.DecisionRequest) (map[string]sim.Decision, error) {
	type tally struct {
		weight float64
		qty    float64 // weight-scaled quantity sum
	}
	votes := make(map[string]map[sim.Action]*tally, len(req.Tickers))

	for _, wp := range c.providers {
		// Effective weight: per-request override first, registration
		// default otherwise.
		w := wp.weight
		if v, ok := req.Params.Weights[wp.name]; ok && v > 0 {
			w = v
		}

		decisions, err := wp.provider.Decide(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", wp.name, err)
		}

		for ticker, d := range decisions {
			byAction := votes[ticker]
			if byAction == nil {
				byAction = make(map[sim.Action]*tally)
				votes[ticker] = byAction
			}
			t := byAction[d.Action]
			if t == nil {
				t = &tally{}
				byAction[d.Action] = t
			}
			t.weight += w
			t.qty += w * float64(d.Quantity)
		}
	}

	out := make(map[string]sim.Decision, len(req.Tickers))
	for _, ticker := range req.Tickers {
		byAction := votes[ticker]
		winner := sim.Hold
		var best *tally

		for action, t := range byAction {
			switch {
			case best == nil || t.weight > best.weight:
				winner, best = action, t
			case t.weight == best.weight && voteOrder[action] < voteOrder[winner]:
				winner, best = action, t
			}
		}

		d := sim.Decision{Action: winner}
		if best != nil && winner != sim.Hold && best.weight > 0 {
			d.Quantity = int64(math.Round(best.qty / best.weight))
		}
		out[ticker] = d
	}

	return out, nil
}
