package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"backtestd/market"
)

const (
	defaultLookbackDays = 30 // calendar days of context per decision call
	defaultMetricsEvery = 5  // recompute metrics every N completed days
)

// Snapshot is the end-of-day portfolio record, appended once per
// simulated day.
type Snapshot struct {
	Date        time.Time               `json:"date"`
	Cash        float64                 `json:"cash"`
	Positions   map[string]PositionView `json:"positions"`
	TotalValue  float64                 `json:"total_value"`
	DailyReturn *float64                `json:"daily_return,omitempty"`
}

// TradingDecision records one decision as requested by the provider and
// as actually executed. Executed below requested is normal.
type TradingDecision struct {
	Ticker    string    `json:"ticker"`
	Action    Action    `json:"action"`
	Requested int64     `json:"requested_quantity"`
	Executed  int64     `json:"executed_quantity"`
	Price     float64   `json:"price"`
	Date      time.Time `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder receives everything the engine produces: the ordered event
// stream plus progress, snapshot, and decision updates. The session layer
// implements it to feed the stream queue and the status endpoint; the CLI
// implements it to drive a progress bar.
type Recorder interface {
	Publish(Event)
	SetProgress(progress float64, currentDate time.Time)
	RecordSnapshot(Snapshot)
	RecordDecision(TradingDecision)
}

// EngineConfig fully determines one simulation run.
type EngineConfig struct {
	SessionID         string
	Tickers           []string
	Start             time.Time
	End               time.Time
	InitialCapital    float64
	MarginRequirement float64
	Params            StrategyParams

	LookbackDays int // 0 means defaultLookbackDays
	MetricsEvery int // 0 means defaultMetricsEvery
}

// Engine simulates one session end to end. It owns its ledger and value
// history exclusively; the only shared touchpoint is the Recorder.
type Engine struct {
	cfg      EngineConfig
	provider DecisionProvider
	prices   market.Provider
	rec      Recorder
	log      *slog.Logger

	ledger *Ledger
	values []float64
	trades int
}

func NewEngine(cfg EngineConfig, provider DecisionProvider, prices market.Provider, rec Recorder, log *slog.Logger) *Engine {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = defaultLookbackDays
	}
	if cfg.MetricsEvery <= 0 {
		cfg.MetricsEvery = defaultMetricsEvery
	}
	return &Engine{
		cfg:      cfg,
		provider: provider,
		prices:   prices,
		rec:      rec,
		log:      log,
		ledger:   NewLedger(cfg.InitialCapital, cfg.MarginRequirement),
	}
}

// Run steps the simulation day by day and returns the final metrics.
// Per-day problems (data gaps, provider failures) are absorbed and the
// loop continues; only errors that invalidate the whole run (prefetch
// failure, cancellation) are returned. A context error means the run was
// cancelled at a day boundary after flushing everything accrued so far.
func (e *Engine) Run(ctx context.Context) (Metrics, error) {
	cfg := e.cfg

	// One bulk fetch for the whole window, lookback included, so the day
	// loop never waits on the price provider.
	hist, err := market.Prefetch(ctx, e.prices, cfg.Tickers,
		cfg.Start.AddDate(0, 0, -cfg.LookbackDays), cfg.End)
	if err != nil {
		return Metrics{}, fmt.Errorf("price prefetch: %w", err)
	}

	days := market.BusinessDays(cfg.Start, cfg.End)
	total := len(days)

	// Day 0 of the value history is the untouched initial capital.
	if total > 0 {
		e.values = append(e.values, cfg.InitialCapital)
	}

	e.rec.Publish(StartEvent{
		SessionID: cfg.SessionID,
		TotalDays: total,
		Tickers:   cfg.Tickers,
		Timestamp: time.Now().UTC(),
	})

	for i, day := range days {
		// Cancellation is only observed here, at day boundaries. A day in
		// flight always finishes.
		select {
		case <-ctx.Done():
			return e.metrics(), ctx.Err()
		default:
		}

		completed := i + 1
		progress := float64(completed) / float64(total)
		dateStr := day.Format("2006-01-02")

		e.rec.Publish(ProgressEvent{
			SessionID:     cfg.SessionID,
			CurrentDate:   dateStr,
			Progress:      progress,
			CompletedDays: completed,
			TotalDays:     total,
			Message:       "Processing " + dateStr,
			Timestamp:     time.Now().UTC(),
		})
		e.rec.SetProgress(progress, day)

		lookbackStart := day.AddDate(0, 0, -cfg.LookbackDays)
		prevDay := day.AddDate(0, 0, -1)

		// A degenerate lookback window means there is no prior context to
		// decide on; the day is skipped by policy, not as an error.
		if !lookbackStart.Before(day) {
			continue
		}

		prices, ok := e.currentPrices(hist, prevDay, day)
		if !ok {
			// Data gap: if any ticker has no quote for the interval the
			// whole day is skipped.
			e.log.Debug("skipping day, missing price data",
				"session", cfg.SessionID, "date", dateStr)
			continue
		}

		decisions := e.decide(ctx, hist, lookbackStart, day)
		e.executeDay(day, dateStr, decisions, prices)
		e.snapshotDay(day, dateStr, prices)

		if completed%cfg.MetricsEvery == 0 || completed == total {
			e.rec.Publish(PerformanceUpdateEvent{
				SessionID: cfg.SessionID,
				Metrics:   e.metrics(),
				Timestamp: time.Now().UTC(),
			})
		}
	}

	return e.metrics(), nil
}

// currentPrices resolves each ticker's latest close in (prevDay, day].
func (e *Engine) currentPrices(hist *market.History, prevDay, day time.Time) (map[string]float64, bool) {
	prices := make(map[string]float64, len(e.cfg.Tickers))
	for _, ticker := range e.cfg.Tickers {
		px, ok := hist.LatestClose(ticker, prevDay, day)
		if !ok {
			return nil, false
		}
		prices[ticker] = px
	}
	return prices, true
}

// decide asks the provider for the day's decisions. A failed call is a
// no-op day: every ticker holds.
func (e *Engine) decide(ctx context.Context, hist *market.History, lookbackStart, day time.Time) map[string]Decision {
	quotes := make(map[string][]market.Quote, len(e.cfg.Tickers))
	for _, ticker := range e.cfg.Tickers {
		quotes[ticker] = hist.Window(ticker, lookbackStart, day.AddDate(0, 0, -1))
	}

	decisions, err := e.provider.Decide(ctx, DecisionRequest{
		Tickers:       e.cfg.Tickers,
		LookbackStart: lookbackStart,
		CurrentDate:   day,
		Portfolio:     e.ledger.View(),
		Quotes:        quotes,
		Params:        e.cfg.Params,
	})
	if err != nil {
		e.log.Warn("decision provider failed, holding all positions",
			"session", e.cfg.SessionID, "date", day.Format("2006-01-02"), "err", err)
		return nil
	}
	return decisions
}

// executeDay runs every non-hold decision through the ledger, in ticker
// order for determinism.
func (e *Engine) executeDay(day time.Time, dateStr string, decisions map[string]Decision, prices map[string]float64) {
	for _, ticker := range e.cfg.Tickers {
		d, ok := decisions[ticker]
		if !ok {
			d = Decision{Action: Hold}
		}

		executed := e.ledger.ExecuteTrade(ticker, d.Action, d.Quantity, prices[ticker])
		if executed > 0 {
			e.trades++
		}
		if executed == 0 && d.Action == Hold {
			continue
		}

		now := time.Now().UTC()
		e.rec.RecordDecision(TradingDecision{
			Ticker:    ticker,
			Action:    d.Action,
			Requested: d.Quantity,
			Executed:  executed,
			Price:     prices[ticker],
			Date:      day,
			Timestamp: now,
		})
		e.rec.Publish(TradingEvent{
			SessionID:      e.cfg.SessionID,
			Date:           dateStr,
			Ticker:         ticker,
			Action:         d.Action,
			Quantity:       executed,
			Requested:      d.Quantity,
			Price:          prices[ticker],
			PortfolioValue: e.ledger.Value(prices),
			Timestamp:      now,
		})
	}
}

// snapshotDay marks the portfolio to market and appends the day's record.
func (e *Engine) snapshotDay(day time.Time, dateStr string, prices map[string]float64) {
	totalValue := e.ledger.Value(prices)

	var dailyReturn *float64
	if prev := e.values[len(e.values)-1]; prev > 0 {
		r := (totalValue - prev) / prev
		dailyReturn = &r
	}
	e.values = append(e.values, totalValue)

	view := e.ledger.View()
	e.rec.RecordSnapshot(Snapshot{
		Date:        day,
		Cash:        view.Cash,
		Positions:   view.Positions,
		TotalValue:  totalValue,
		DailyReturn: dailyReturn,
	})
	e.rec.Publish(PortfolioUpdateEvent{
		SessionID:   e.cfg.SessionID,
		Date:        dateStr,
		Cash:        view.Cash,
		TotalValue:  totalValue,
		DailyReturn: dailyReturn,
		Positions:   view.Positions,
		Timestamp:   time.Now().UTC(),
	})
}

func (e *Engine) metrics() Metrics {
	return ComputeMetrics(e.cfg.InitialCapital, e.values, e.ledger.ClosedTradePL(), e.trades)
}

// FinalValue is the last marked portfolio value, or the initial capital
// when no day was ever processed.
func (e *Engine) FinalValue() float64 {
	if len(e.values) == 0 {
		return e.cfg.InitialCapital
	}
	return e.values[len(e.values)-1]
}

// Portfolio returns a read-only view of the ledger's current state.
func (e *Engine) Portfolio() PortfolioView {
	return e.ledger.View()
}

// Values returns a copy of the portfolio value history.
func (e *Engine) Values() []float64 {
	out := make([]float64, len(e.values))
	copy(out, e.values)
	return out
}
