package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"backtestd/internal/id"
	"backtestd/journal"
	"backtestd/market"
	"backtestd/sim"
	"backtestd/strategies"
)

var (
	// ErrValidation marks a malformed request; no session is created.
	ErrValidation = errors.New("invalid request")

	// ErrNotFound marks an unknown session id.
	ErrNotFound = errors.New("session not found")
)

// Registry creates, looks up, and evicts sessions. The id->session map is
// the only state shared across call paths; everything inside a session is
// single-writer.
type Registry struct {
	prices  market.Provider
	journal journal.Journal
	log     *slog.Logger

	lookbackDays int
	metricsEvery int
	weights      map[string]float64

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry wires a registry to a price provider and a journal. Pass
// journal.Nop{} to disable persistence.
func NewRegistry(prices market.Provider, j journal.Journal, log *slog.Logger) *Registry {
	if j == nil {
		j = journal.Nop{}
	}
	return &Registry{
		prices:   prices,
		journal:  j,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// SetDefaults overrides the engine's lookback window and metrics cadence
// for sessions that do not specify their own.
func (r *Registry) SetDefaults(lookbackDays, metricsEvery int) {
	r.lookbackDays = lookbackDays
	r.metricsEvery = metricsEvery
}

// SetDefaultWeights installs server-level strategy weights, applied to any
// request that does not weight that strategy itself.
func (r *Registry) SetDefaultWeights(weights map[string]float64) {
	r.weights = weights
}

// Create validates the request, resolves its strategies, and registers a
// new initialized session. The engine does not start until Start.
func (r *Registry) Create(req Request) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Request weights win; server defaults fill the gaps.
	for name, w := range r.weights {
		if _, ok := req.Weights[name]; ok {
			continue
		}
		if req.Weights == nil {
			req.Weights = make(map[string]float64)
		}
		req.Weights[name] = w
	}

	provider, err := strategies.ForNames(req.Strategies, req.Weights)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	s := &Session{
		ID:       id.New(),
		Request:  req,
		Created:  time.Now().UTC(),
		queue:    NewQueue(),
		provider: provider,
		journal:  r.journal,
		done:     make(chan struct{}),
		status:   StatusInitialized,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return s, nil
}

// Start launches the session's engine on its own goroutine.
func (r *Registry) Start(s *Session) {
	ctx, cancel := context.WithCancel(context.Background())
	s.setCancel(cancel)
	go r.run(ctx, s)
}

// run drives one engine to a terminal state and emits the single terminal
// event.
func (r *Registry) run(ctx context.Context, s *Session) {
	defer close(s.done)

	var (
		metrics sim.Metrics
		runErr  error
		engine  *sim.Engine
	)

	func() {
		// A panic escaping the day loop fails the session instead of
		// crashing the process.
		defer func() {
			if p := recover(); p != nil {
				runErr = fmt.Errorf("panic: %v", p)
			}
		}()

		// Cancelled before the task ever ran: nothing to simulate.
		if s.Status().Terminal() {
			runErr = context.Canceled
			return
		}

		start, end, err := s.Request.Window()
		if err != nil {
			runErr = err
			return
		}

		lookback := s.Request.LookbackDays
		if lookback <= 0 {
			lookback = r.lookbackDays
		}

		s.setStatus(StatusRunning)
		engine = sim.NewEngine(sim.EngineConfig{
			SessionID:         s.ID,
			Tickers:           s.Request.Tickers,
			Start:             start,
			End:               end,
			InitialCapital:    s.Request.InitialCapital,
			MarginRequirement: s.Request.MarginRequirement,
			Params: sim.StrategyParams{
				Strategies: s.Request.Strategies,
				Weights:    s.Request.Weights,
			},
			LookbackDays: lookback,
			MetricsEvery: r.metricsEvery,
		}, s.provider, r.prices, s, r.log)

		metrics, runErr = engine.Run(ctx)
	}()

	complete := sim.CompleteEvent{
		SessionID: s.ID,
		Timestamp: time.Now().UTC(),
	}

	switch {
	case errors.Is(runErr, context.Canceled) || s.Status() == StatusCancelled:
		s.setStatus(StatusCancelled)
		complete.Status = string(StatusCancelled)
		r.log.Info("backtest cancelled", "session", s.ID)

	case runErr != nil:
		s.setStatus(StatusFailed)
		s.setError(runErr.Error())
		complete.Status = string(StatusFailed)
		complete.Error = runErr.Error()
		r.log.Error("backtest failed", "session", s.ID, "err", runErr)

	default:
		s.setStatus(StatusCompleted)
		s.SetProgress(1.0, time.Now().UTC())
		s.setMetrics(metrics)
		complete.Status = string(StatusCompleted)
		complete.FinalPerformance = &sim.FinalPerformance{
			Metrics:        metrics,
			FinalValue:     engine.FinalValue(),
			InitialCapital: s.Request.InitialCapital,
		}
		r.log.Info("backtest completed", "session", s.ID,
			"total_return", metrics.TotalReturn)
	}

	s.Publish(complete)
	r.recordRun(s, engine)
}

func (r *Registry) recordRun(s *Session, engine *sim.Engine) {
	start, end, err := s.Request.Window()
	if err != nil {
		return
	}
	rec := journal.RunRecord{
		SessionID:      s.ID,
		Status:         string(s.Status()),
		Tickers:        strings.Join(s.Request.Tickers, ","),
		Strategies:     strings.Join(s.Request.Strategies, ","),
		Start:          start,
		End:            end,
		InitialCapital: s.Request.InitialCapital,
		Created:        time.Now().UTC(),
	}
	if engine != nil {
		rec.FinalValue = engine.FinalValue()
		if s.Request.InitialCapital > 0 {
			rec.TotalReturn = (rec.FinalValue/s.Request.InitialCapital - 1) * 100
		}
	}
	if err := r.journal.RecordRun(rec); err != nil {
		r.log.Warn("journal run record failed", "session", s.ID, "err", err)
	}
}

// Get looks up a session by id.
func (r *Registry) Get(sid string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	return s, ok
}

// Cancel requests cancellation of a running session. It marks the session
// cancelled immediately and returns without waiting; the engine exits at
// its next day boundary.
func (r *Registry) Cancel(sid string) error {
	s, ok := r.Get(sid)
	if !ok {
		return ErrNotFound
	}

	if s.setStatus(StatusCancelled) {
		s.cancelTask()
	}
	return nil
}

// Cleanup cancels any running task and evicts the session. Unknown ids
// are a no-op, making eviction idempotent.
func (r *Registry) Cleanup(sid string) {
	r.mu.Lock()
	s, ok := r.sessions[sid]
	delete(r.sessions, sid)
	r.mu.Unlock()

	if ok && s.setStatus(StatusCancelled) {
		s.cancelTask()
	}
}

// CleanupAll evicts every session, cancelling outstanding tasks.
func (r *Registry) CleanupAll() int {
	r.mu.Lock()
	evicted := make([]*Session, 0, len(r.sessions))
	for sid, s := range r.sessions {
		evicted = append(evicted, s)
		delete(r.sessions, sid)
	}
	r.mu.Unlock()

	for _, s := range evicted {
		if s.setStatus(StatusCancelled) {
			s.cancelTask()
		}
	}
	return len(evicted)
}

// List returns the live sessions' infos, newest first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	infos := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, s.Info(false))
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Created.After(infos[j].Created) })
	return infos
}

// Len reports how many sessions are live.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
