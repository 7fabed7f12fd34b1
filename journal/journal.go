// Package journal persists backtest output: executed trades, daily
// portfolio snapshots, and per-run summaries. SQLite and CSV backends
// share the Journal interface; Nop disables persistence.
package journal

import "time"

// TradeRecord is one executed (or attempted) trade decision.
type TradeRecord struct {
	SessionID string
	Ticker    string
	Action    string
	Requested int64
	Executed  int64
	Price     float64
	Date      time.Time
	Timestamp time.Time
}

// SnapshotRecord is one end-of-day portfolio valuation.
type SnapshotRecord struct {
	SessionID   string
	Date        time.Time
	Cash        float64
	TotalValue  float64
	DailyReturn float64 // 0 when undefined
}

// RunRecord summarizes a finished session.
type RunRecord struct {
	SessionID      string
	Status         string
	Tickers        string // comma-joined
	Strategies     string // comma-joined
	Start          time.Time
	End            time.Time
	InitialCapital float64
	FinalValue     float64
	TotalReturn    float64
	Created        time.Time
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordSnapshot(SnapshotRecord) error
	RecordRun(RunRecord) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error       { return nil }
func (Nop) RecordSnapshot(SnapshotRecord) error { return nil }
func (Nop) RecordRun(RunRecord) error           { return nil }
func (Nop) Close() error                        { return nil }
