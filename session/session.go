package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"backtestd/journal"
	"backtestd/sim"
)

// Status is a session's lifecycle state. Transitions only move forward:
// initialized -> running -> one terminal state, never revisited.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Request describes one backtest to run.
type Request struct {
	Tickers           []string           `json:"tickers"`
	Strategies        []string           `json:"strategies"`
	StartDate         string             `json:"start_date"`
	EndDate           string             `json:"end_date"`
	InitialCapital    float64            `json:"initial_capital"`
	MarginRequirement float64            `json:"margin_requirement"`
	Weights           map[string]float64 `json:"weights,omitempty"`
	LookbackDays      int                `json:"lookback_days,omitempty"`
}

// Validate rejects malformed requests before any session exists.
func (r *Request) Validate() error {
	if len(r.Tickers) == 0 {
		return fmt.Errorf("%w: at least one ticker is required", ErrValidation)
	}
	if len(r.Strategies) == 0 {
		return fmt.Errorf("%w: at least one strategy must be selected", ErrValidation)
	}
	if r.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital must be positive", ErrValidation)
	}
	if r.MarginRequirement < 0 {
		return fmt.Errorf("%w: margin_requirement must not be negative", ErrValidation)
	}
	start, end, err := r.Window()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end_date is before start_date", ErrValidation)
	}
	return nil
}

// Window parses the request's date range.
func (r *Request) Window() (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", r.StartDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: bad start_date: %v", ErrValidation, err)
	}
	end, err := time.ParseInLocation("2006-01-02", r.EndDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: bad end_date: %v", ErrValidation, err)
	}
	return start, end, nil
}

// Session is one backtest: the request, the engine task driving it, the
// event queue consumers drain, and the state the status endpoint reads.
// The engine goroutine is the only writer of simulation state; the mutex
// exists for cross-goroutine reads.
type Session struct {
	ID      string
	Request Request
	Created time.Time

	queue    *Queue
	provider sim.DecisionProvider
	journal  journal.Journal

	done chan struct{}

	mu          sync.Mutex
	cancel      context.CancelFunc
	status      Status
	progress    float64
	currentDate time.Time
	errMsg      string
	snapshots   []sim.Snapshot
	decisions   []sim.TradingDecision
	metrics     *sim.Metrics
}

// Queue returns the session's event channel.
func (s *Session) Queue() *Queue { return s.queue }

// Done is closed when the engine task has fully exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// setStatus advances the lifecycle. Backward moves and transitions out of
// a terminal state are ignored, so no session ever reaches two terminal
// states.
func (s *Session) setStatus(to Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return false
	}
	if to == StatusInitialized && s.status != StatusInitialized {
		return false
	}
	s.status = to
	return true
}

func (s *Session) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
}

// cancelTask cancels the engine task, if one was ever started.
func (s *Session) cancelTask() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
}

func (s *Session) setMetrics(m sim.Metrics) {
	s.mu.Lock()
	s.metrics = &m
	s.mu.Unlock()
}

// Publish implements sim.Recorder.
func (s *Session) Publish(e sim.Event) {
	s.queue.Push(e)
}

// SetProgress implements sim.Recorder. Progress is monotonically
// non-decreasing; stale updates are dropped.
func (s *Session) SetProgress(progress float64, currentDate time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if progress > s.progress {
		s.progress = progress
	}
	s.currentDate = currentDate
}

// RecordSnapshot implements sim.Recorder.
func (s *Session) RecordSnapshot(snap sim.Snapshot) {
	s.mu.Lock()
	s.snapshots = append(s.snapshots, snap)
	s.mu.Unlock()

	var ret float64
	if snap.DailyReturn != nil {
		ret = *snap.DailyReturn
	}
	_ = s.journal.RecordSnapshot(journal.SnapshotRecord{
		SessionID:   s.ID,
		Date:        snap.Date,
		Cash:        snap.Cash,
		TotalValue:  snap.TotalValue,
		DailyReturn: ret,
	})
}

// RecordDecision implements sim.Recorder.
func (s *Session) RecordDecision(d sim.TradingDecision) {
	s.mu.Lock()
	s.decisions = append(s.decisions, d)
	s.mu.Unlock()

	_ = s.journal.RecordTrade(journal.TradeRecord{
		SessionID: s.ID,
		Ticker:    d.Ticker,
		Action:    string(d.Action),
		Requested: d.Requested,
		Executed:  d.Executed,
		Price:     d.Price,
		Date:      d.Date,
		Timestamp: d.Timestamp,
	})
}

// Info is the status-query view of a session.
type Info struct {
	ID           string                `json:"session_id"`
	Status       Status                `json:"status"`
	Progress     float64               `json:"progress"`
	CurrentDate  string                `json:"current_date,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Created      time.Time             `json:"created"`
	Request      Request               `json:"request"`
	Metrics      *sim.Metrics          `json:"performance_metrics,omitempty"`
	Snapshots    []sim.Snapshot        `json:"portfolio_snapshots,omitempty"`
	Decisions    []sim.TradingDecision `json:"trading_decisions,omitempty"`
}

// Info snapshots the session for the status endpoint. The detail flag
// includes the full snapshot and decision histories.
func (s *Session) Info(detail bool) Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:           s.ID,
		Status:       s.status,
		Progress:     s.progress,
		ErrorMessage: s.errMsg,
		Created:      s.Created,
		Request:      s.Request,
		Metrics:      s.metrics,
	}
	if !s.currentDate.IsZero() {
		info.CurrentDate = s.currentDate.Format("2006-01-02")
	}
	if detail {
		info.Snapshots = append([]sim.Snapshot(nil), s.snapshots...)
		info.Decisions = append([]sim.TradingDecision(nil), s.decisions...)
	}
	return info
}
