package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCSV(t *testing.T) (*CSV, string) {
	t.Helper()

	dir := t.TempDir()
	j, err := NewCSV(
		filepath.Join(dir, "trades.csv"),
		filepath.Join(dir, "snapshots.csv"),
		filepath.Join(dir, "runs.csv"),
	)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, dir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	assert.NoError(t, err)
	return rows
}

func TestCSVWritesHeaders(t *testing.T) {
	t.Parallel()

	j, dir := newTestCSV(t)
	assert.NoError(t, j.Close())

	trades := readCSV(t, filepath.Join(dir, "trades.csv"))
	assert.Len(t, trades, 1)
	assert.Equal(t, "session_id", trades[0][0])
	assert.Equal(t, "ticker", trades[0][1])

	snaps := readCSV(t, filepath.Join(dir, "snapshots.csv"))
	assert.Len(t, snaps, 1)
	assert.Equal(t, "total_value", snaps[0][3])
}

func TestCSVRecordsRows(t *testing.T) {
	t.Parallel()

	j, dir := newTestCSV(t)

	date := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, j.RecordTrade(TradeRecord{
		SessionID: "sess-1",
		Ticker:    "AAPL",
		Action:    "buy",
		Requested: 10,
		Executed:  10,
		Price:     150,
		Date:      date,
		Timestamp: date,
	}))
	assert.NoError(t, j.RecordSnapshot(SnapshotRecord{
		SessionID:  "sess-1",
		Date:       date,
		Cash:       98_500,
		TotalValue: 100_000,
	}))
	assert.NoError(t, j.RecordRun(RunRecord{
		SessionID:  "sess-1",
		Status:     "completed",
		Tickers:    "AAPL",
		Strategies: "momentum",
		Start:      date,
		End:        date.AddDate(0, 1, 0),
	}))
	assert.NoError(t, j.Close())

	trades := readCSV(t, filepath.Join(dir, "trades.csv"))
	assert.Len(t, trades, 2)
	assert.Equal(t, []string{
		"sess-1", "AAPL", "buy", "10", "10", "150.000000",
		"2024-01-08", "2024-01-08T00:00:00Z",
	}, trades[1])

	snaps := readCSV(t, filepath.Join(dir, "snapshots.csv"))
	assert.Len(t, snaps, 2)
	assert.Equal(t, "100000.000000", snaps[1][3])

	runs := readCSV(t, filepath.Join(dir, "runs.csv"))
	assert.Len(t, runs, 2)
	assert.Equal(t, "completed", runs[1][1])
	assert.Equal(t, "2024-01-08", runs[1][4])
}
