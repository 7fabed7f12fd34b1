package sim

import "time"

// EventType tags every streamed message.
type EventType string

const (
	EventStart             EventType = "start"
	EventProgress          EventType = "progress"
	EventTrading           EventType = "trading"
	EventPortfolioUpdate   EventType = "portfolio_update"
	EventPerformanceUpdate EventType = "performance_update"
	EventComplete          EventType = "complete"
	EventError             EventType = "error"
	EventKeepalive         EventType = "keepalive"
	EventTimeout           EventType = "timeout"
)

// Event is any message the engine or stream consumer can emit for a
// session. The payload struct marshals to the event's data body.
type Event interface {
	Kind() EventType
}

// StartEvent opens every session stream, exactly once.
type StartEvent struct {
	SessionID string    `json:"session_id"`
	TotalDays int       `json:"total_days"`
	Tickers   []string  `json:"tickers"`
	Timestamp time.Time `json:"timestamp"`
}

func (StartEvent) Kind() EventType { return EventStart }

// ProgressEvent reports the engine advancing to a new trading day.
type ProgressEvent struct {
	SessionID     string    `json:"session_id"`
	CurrentDate   string    `json:"current_date"`
	Progress      float64   `json:"progress"`
	CompletedDays int       `json:"completed_days"`
	TotalDays     int       `json:"total_days"`
	Message       string    `json:"message,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (ProgressEvent) Kind() EventType { return EventProgress }

// TradingEvent reports one executed (or attempted non-hold) decision.
type TradingEvent struct {
	SessionID      string    `json:"session_id"`
	Date           string    `json:"date"`
	Ticker         string    `json:"ticker"`
	Action         Action    `json:"action"`
	Quantity       int64     `json:"quantity"` // executed, not requested
	Requested      int64     `json:"requested"`
	Price          float64   `json:"price"`
	PortfolioValue float64   `json:"portfolio_value"`
	Timestamp      time.Time `json:"timestamp"`
}

func (TradingEvent) Kind() EventType { return EventTrading }

// PortfolioUpdateEvent carries the end-of-day portfolio snapshot.
type PortfolioUpdateEvent struct {
	SessionID   string                  `json:"session_id"`
	Date        string                  `json:"date"`
	Cash        float64                 `json:"cash"`
	TotalValue  float64                 `json:"total_value"`
	DailyReturn *float64                `json:"daily_return,omitempty"`
	Positions   map[string]PositionView `json:"positions"`
	Timestamp   time.Time               `json:"timestamp"`
}

func (PortfolioUpdateEvent) Kind() EventType { return EventPortfolioUpdate }

// PerformanceUpdateEvent carries interim metrics, emitted every few days
// and on the final day.
type PerformanceUpdateEvent struct {
	SessionID string    `json:"session_id"`
	Metrics   Metrics   `json:"metrics"`
	Timestamp time.Time `json:"timestamp"`
}

func (PerformanceUpdateEvent) Kind() EventType { return EventPerformanceUpdate }

// FinalPerformance is the result payload of a completed session.
type FinalPerformance struct {
	Metrics
	FinalValue     float64 `json:"final_value"`
	InitialCapital float64 `json:"initial_capital"`
}

// CompleteEvent terminates a session stream, exactly once, whatever the
// terminal status. FinalPerformance is set for completed sessions and
// Error for failed ones.
type CompleteEvent struct {
	SessionID        string            `json:"session_id"`
	Status           string            `json:"status"` // completed, failed, cancelled
	FinalPerformance *FinalPerformance `json:"final_performance,omitempty"`
	Error            string            `json:"error,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

func (CompleteEvent) Kind() EventType { return EventComplete }

// KeepaliveEvent is synthesized by the stream consumer when no event
// arrives within the drain timeout. It never originates in the engine.
type KeepaliveEvent struct{}

func (KeepaliveEvent) Kind() EventType { return EventKeepalive }

// TimeoutEvent is the consumer's synthetic terminal event for a session
// that stopped producing without ever finishing.
type TimeoutEvent struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (TimeoutEvent) Kind() EventType { return EventTimeout }

// ErrorEvent reports a stream-level error to the consumer.
type ErrorEvent struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

func (ErrorEvent) Kind() EventType { return EventError }
