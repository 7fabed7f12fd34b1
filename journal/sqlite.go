package journal

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite records trades, snapshots, and run summaries in a SQLite
// database. Safe for use from multiple sessions; database/sql serializes
// access.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(session_id, ticker, action, requested, executed, price, date, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.Ticker, t.Action, t.Requested, t.Executed,
		t.Price, t.Date, t.Timestamp,
	)
	return err
}

func (j *SQLite) RecordSnapshot(s SnapshotRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO snapshots
		(session_id, date, cash, total_value, daily_return)
		VALUES (?, ?, ?, ?, ?)`,
		s.SessionID, s.Date, s.Cash, s.TotalValue, s.DailyReturn,
	)
	return err
}

func (j *SQLite) RecordRun(r RunRecord) error {
	if r.Created.IsZero() {
		r.Created = time.Now().UTC()
	}
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO runs
		(session_id, status, tickers, strategies, start_date, end_date,
		 initial_capital, final_value, total_return, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Status, r.Tickers, r.Strategies, r.Start, r.End,
		r.InitialCapital, r.FinalValue, r.TotalReturn, r.Created,
	)
	return err
}

// ListTrades returns the trades journaled for one session, oldest first.
func (j *SQLite) ListTrades(ctx context.Context, sessionID string) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, ticker, action, requested, executed, price, date, timestamp
		FROM trades WHERE session_id = ? ORDER BY timestamp`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.SessionID, &t.Ticker, &t.Action, &t.Requested,
			&t.Executed, &t.Price, &t.Date, &t.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetRun loads one run summary.
func (j *SQLite) GetRun(ctx context.Context, sessionID string) (RunRecord, error) {
	var r RunRecord
	err := j.db.QueryRowContext(ctx, `
		SELECT session_id, status, tickers, strategies, start_date, end_date,
		       initial_capital, final_value, total_return, created
		FROM runs WHERE session_id = ?`, sessionID).
		Scan(&r.SessionID, &r.Status, &r.Tickers, &r.Strategies, &r.Start, &r.End,
			&r.InitialCapital, &r.FinalValue, &r.TotalReturn, &r.Created)
	return r, err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
