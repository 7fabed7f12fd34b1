package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('trades','snapshots','runs')`)
	assert.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["trades"])
	assert.True(t, found["snapshots"])
	assert.True(t, found["runs"])
}

func TestSQLiteTradeRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	date := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, j.RecordTrade(TradeRecord{
		SessionID: "sess-1",
		Ticker:    "AAPL",
		Action:    "buy",
		Requested: 10,
		Executed:  7,
		Price:     150.25,
		Date:      date,
		Timestamp: date.Add(16 * time.Hour),
	}))
	assert.NoError(t, j.RecordTrade(TradeRecord{
		SessionID: "sess-1",
		Ticker:    "AAPL",
		Action:    "sell",
		Requested: 7,
		Executed:  7,
		Price:     155.00,
		Date:      date.AddDate(0, 0, 1),
		Timestamp: date.AddDate(0, 0, 1).Add(16 * time.Hour),
	}))
	assert.NoError(t, j.RecordTrade(TradeRecord{
		SessionID: "other",
		Ticker:    "MSFT",
		Action:    "buy",
		Requested: 1,
		Executed:  1,
		Price:     400,
		Date:      date,
		Timestamp: date,
	}))

	trades, err := j.ListTrades(context.Background(), "sess-1")
	assert.NoError(t, err)
	assert.Len(t, trades, 2)

	assert.Equal(t, "buy", trades[0].Action)
	assert.Equal(t, int64(10), trades[0].Requested)
	assert.Equal(t, int64(7), trades[0].Executed)
	assert.Equal(t, 150.25, trades[0].Price)
	assert.Equal(t, "sell", trades[1].Action)
}

func TestSQLiteRunRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	rec := RunRecord{
		SessionID:      "sess-1",
		Status:         "completed",
		Tickers:        "AAPL,MSFT",
		Strategies:     "momentum",
		Start:          time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
		InitialCapital: 100_000,
		FinalValue:     112_500,
		TotalReturn:    12.5,
		Created:        time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
	}
	assert.NoError(t, j.RecordRun(rec))

	got, err := j.GetRun(context.Background(), "sess-1")
	assert.NoError(t, err)
	assert.Equal(t, rec.Status, got.Status)
	assert.Equal(t, rec.Tickers, got.Tickers)
	assert.Equal(t, rec.InitialCapital, got.InitialCapital)
	assert.Equal(t, rec.FinalValue, got.FinalValue)
	assert.Equal(t, rec.TotalReturn, got.TotalReturn)

	// Re-recording the same session replaces the summary.
	rec.Status = "cancelled"
	assert.NoError(t, j.RecordRun(rec))
	got, err = j.GetRun(context.Background(), "sess-1")
	assert.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)
}

func TestSQLiteGetRunMissing(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	_, err := j.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSQLiteSnapshots(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.RecordSnapshot(SnapshotRecord{
		SessionID:   "sess-1",
		Date:        time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		Cash:        98_500,
		TotalValue:  100_020,
		DailyReturn: 0.0002,
	}))
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var count int
	assert.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE session_id='sess-1'`).Scan(&count))
	assert.Equal(t, 1, count)
}
