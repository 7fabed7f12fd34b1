// Package sim implements the backtest core: the portfolio ledger, the
// performance calculator, and the day-stepping simulation engine.
package sim

import "math"

// Action is a trade instruction from a decision provider.
type Action string

const (
	Buy   Action = "buy"
	Sell  Action = "sell"
	Short Action = "short"
	Cover Action = "cover"
	Hold  Action = "hold"
)

// Position tracks open long and short quantity for one ticker, with the
// total cost basis of each side so closes can book realized gains against
// the average entry price.
type Position struct {
	Long           int64
	Short          int64
	LongCostBasis  float64 // dollars paid for the open long quantity
	ShortCostBasis float64 // entry proceeds of the open short quantity
}

// PositionView is the read-only form of a Position exposed in snapshots
// and decision requests.
type PositionView struct {
	Long         int64   `json:"long"`
	Short        int64   `json:"short"`
	AvgLongCost  float64 `json:"avg_long_cost"`
	AvgShortCost float64 `json:"avg_short_cost"`
}

// PortfolioView is an immutable snapshot of ledger state handed to
// decision providers and status queries.
type PortfolioView struct {
	Cash              float64                 `json:"cash"`
	MarginRequirement float64                 `json:"margin_requirement"`
	RealizedGains     float64                 `json:"realized_gains"`
	Positions         map[string]PositionView `json:"positions"`
}

// Ledger owns cash, positions, and realized gains for one simulation.
// It is single-writer: only the owning engine goroutine may call its
// methods, so no locking happens here.
type Ledger struct {
	cash              float64
	marginRequirement float64
	realizedGains     float64
	positions         map[string]*Position
	closedPL          []float64 // realized P/L per closing execution
}

func NewLedger(initialCash, marginRequirement float64) *Ledger {
	return &Ledger{
		cash:              initialCash,
		marginRequirement: marginRequirement,
		positions:         make(map[string]*Position),
	}
}

func (l *Ledger) position(ticker string) *Position {
	p, ok := l.positions[ticker]
	if !ok {
		p = &Position{}
		l.positions[ticker] = p
	}
	return p
}

// ExecuteTrade applies one trade against the ledger and returns the
// executed quantity, which may be anywhere from zero to the requested
// quantity. Partial fills are expected behavior, not errors: buys are
// capped by available cash, sells by held longs, covers by held shorts,
// and shorts by margin capacity.
//
// When the margin requirement is zero, short capacity is unbounded.
func (l *Ledger) ExecuteTrade(ticker string, action Action, requested int64, price float64) int64 {
	if requested <= 0 || price <= 0 {
		return 0
	}
	p := l.position(ticker)

	switch action {
	case Buy:
		executed := min64(requested, int64(math.Floor(l.cash/price)))
		if executed <= 0 {
			return 0
		}
		l.cash -= float64(executed) * price
		p.Long += executed
		p.LongCostBasis += float64(executed) * price
		return executed

	case Sell:
		executed := min64(requested, p.Long)
		if executed <= 0 {
			return 0
		}
		avgCost := p.LongCostBasis / float64(p.Long)
		gain := float64(executed) * (price - avgCost)

		l.cash += float64(executed) * price
		l.realizedGains += gain
		l.closedPL = append(l.closedPL, gain)
		p.LongCostBasis -= float64(executed) * avgCost
		p.Long -= executed
		if p.Long == 0 {
			p.LongCostBasis = 0
		}
		return executed

	case Short:
		executed := requested
		if l.marginRequirement > 0 {
			capacity := int64(math.Floor(l.cash / (price * l.marginRequirement)))
			executed = min64(requested, capacity)
		}
		if executed <= 0 {
			return 0
		}
		// Proceeds are credited and held as margin collateral.
		l.cash += float64(executed) * price
		p.ShortCostBasis += float64(executed) * price
		p.Short += executed
		return executed

	case Cover:
		executed := min64(requested, p.Short)
		if executed <= 0 {
			return 0
		}
		avgEntry := p.ShortCostBasis / float64(p.Short)
		gain := float64(executed) * (avgEntry - price)

		l.cash -= float64(executed) * price
		l.realizedGains += gain
		l.closedPL = append(l.closedPL, gain)
		p.ShortCostBasis -= float64(executed) * avgEntry
		p.Short -= executed
		if p.Short == 0 {
			p.ShortCostBasis = 0
		}
		return executed

	case Hold:
		return 0
	}

	return 0
}

// Value marks the portfolio to the given prices:
//
//	cash + long market value - short market value
//
// Per-day snapshots and final results both go through here so the two can
// never diverge.
func (l *Ledger) Value(prices map[string]float64) float64 {
	total := l.cash
	for ticker, p := range l.positions {
		px := prices[ticker]
		total += float64(p.Long) * px
		total -= float64(p.Short) * px
	}
	return total
}

func (l *Ledger) Cash() float64          { return l.cash }
func (l *Ledger) RealizedGains() float64 { return l.realizedGains }

// ClosedTradePL returns the realized P/L of every closing execution so
// far, in execution order.
func (l *Ledger) ClosedTradePL() []float64 {
	out := make([]float64, len(l.closedPL))
	copy(out, l.closedPL)
	return out
}

// View builds a read-only snapshot of the ledger. Zero positions are
// omitted to keep payloads small.
func (l *Ledger) View() PortfolioView {
	v := PortfolioView{
		Cash:              l.cash,
		MarginRequirement: l.marginRequirement,
		RealizedGains:     l.realizedGains,
		Positions:         make(map[string]PositionView, len(l.positions)),
	}
	for ticker, p := range l.positions {
		if p.Long == 0 && p.Short == 0 {
			continue
		}
		pv := PositionView{Long: p.Long, Short: p.Short}
		if p.Long > 0 {
			pv.AvgLongCost = p.LongCostBasis / float64(p.Long)
		}
		if p.Short > 0 {
			pv.AvgShortCost = p.ShortCostBasis / float64(p.Short)
		}
		v.Positions[ticker] = pv
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
