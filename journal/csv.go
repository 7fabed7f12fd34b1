package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSV writes trades and snapshots as flat CSV files. Run summaries have
// no natural home in this layout and are appended to the snapshots file's
// directory as runs.csv.
type CSV struct {
	trades    *csv.Writer
	snapshots *csv.Writer
	runs      *csv.Writer
	files     []*os.File
}

func NewCSV(tradesPath, snapshotsPath, runsPath string) (*CSV, error) {
	j := &CSV{}

	open := func(path string, header []string) (*csv.Writer, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.trades, err = open(tradesPath, []string{
		"session_id", "ticker", "action", "requested", "executed", "price", "date", "timestamp",
	}); err != nil {
		j.Close()
		return nil, err
	}
	if j.snapshots, err = open(snapshotsPath, []string{
		"session_id", "date", "cash", "total_value", "daily_return",
	}); err != nil {
		j.Close()
		return nil, err
	}
	if j.runs, err = open(runsPath, []string{
		"session_id", "status", "tickers", "strategies", "start_date", "end_date",
		"initial_capital", "final_value", "total_return", "created",
	}); err != nil {
		j.Close()
		return nil, err
	}

	return j, nil
}

func (j *CSV) RecordTrade(t TradeRecord) error {
	err := j.trades.Write([]string{
		t.SessionID,
		t.Ticker,
		t.Action,
		strconv.FormatInt(t.Requested, 10),
		strconv.FormatInt(t.Executed, 10),
		f(t.Price),
		t.Date.Format("2006-01-02"),
		t.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSV) RecordSnapshot(s SnapshotRecord) error {
	err := j.snapshots.Write([]string{
		s.SessionID,
		s.Date.Format("2006-01-02"),
		f(s.Cash),
		f(s.TotalValue),
		f(s.DailyReturn),
	})
	if err != nil {
		return err
	}
	j.snapshots.Flush()
	return j.snapshots.Error()
}

func (j *CSV) RecordRun(r RunRecord) error {
	created := r.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	err := j.runs.Write([]string{
		r.SessionID,
		r.Status,
		r.Tickers,
		r.Strategies,
		r.Start.Format("2006-01-02"),
		r.End.Format("2006-01-02"),
		f(r.InitialCapital),
		f(r.FinalValue),
		f(r.TotalReturn),
		created.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.runs.Flush()
	return j.runs.Error()
}

func (j *CSV) Close() error {
	var first error
	for _, w := range []*csv.Writer{j.trades, j.snapshots, j.runs} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil && first == nil {
			first = err
		}
	}
	for _, f := range j.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
