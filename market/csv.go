package market

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/xyproto/unzip"
)

// CSVDir serves quotes from per-ticker CSV files in a directory. A ticker
// AAPL resolves to AAPL.csv, AAPL.csv.gz, or AAPL.csv.xz, whichever exists
// first. Files carry a header row:
//
//	date,open,high,low,close,volume
//
// with dates formatted 2006-01-02.
type CSVDir struct {
	dir string
}

func NewCSVDir(dir string) *CSVDir {
	return &CSVDir{dir: dir}
}

// ExtractArchive unpacks a .zip bundle of per-ticker CSV files into the
// provider's directory. Datasets are commonly distributed as one archive
// per exchange.
func (c *CSVDir) ExtractArchive(path string) error {
	if err := unzip.Extract(path, c.dir); err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}
	return nil
}

// Prices reads the ticker's file and returns rows with dates in
// [start, end]. A missing file is treated as "no data", not an error.
func (c *CSVDir) Prices(_ context.Context, ticker string, start, end time.Time) ([]Quote, error) {
	r, err := c.open(ticker)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer r.Close()

	rows, err := parseQuotes(r, ticker)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ticker, err)
	}

	lo, hi := Day(start), Day(end)
	out := rows[:0]
	for _, q := range rows {
		if q.Date.Before(lo) || q.Date.After(hi) {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (c *CSVDir) open(ticker string) (io.ReadCloser, error) {
	base := filepath.Join(c.dir, strings.ToUpper(ticker))

	if f, err := os.Open(base + ".csv"); err == nil {
		return f, nil
	}

	if f, err := os.Open(base + ".csv.gz"); err == nil {
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &wrappedCloser{Reader: zr, file: f}, nil
	}

	if f, err := os.Open(base + ".csv.xz"); err == nil {
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &wrappedCloser{Reader: xr, file: f}, nil
	}

	return nil, os.ErrNotExist
}

type wrappedCloser struct {
	io.Reader
	file *os.File
}

func (w *wrappedCloser) Close() error {
	return w.file.Close()
}

func parseQuotes(r io.Reader, ticker string) ([]Quote, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, need := range []string{"date", "close"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("missing %q column", need)
		}
	}

	var out []Quote
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		date, err := time.ParseInLocation("2006-01-02", rec[col["date"]], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad date: %w", line, err)
		}

		q := Quote{Ticker: strings.ToUpper(ticker), Date: date}
		q.Close, err = strconv.ParseFloat(rec[col["close"]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad close: %w", line, err)
		}

		// Optional columns fall back to the close.
		q.Open = optFloat(rec, col, "open", q.Close)
		q.High = optFloat(rec, col, "high", q.Close)
		q.Low = optFloat(rec, col, "low", q.Close)
		q.Volume = optFloat(rec, col, "volume", 0)

		out = append(out, q)
	}
	return out, nil
}

func optFloat(rec []string, col map[string]int, name string, fallback float64) float64 {
	i, ok := col[name]
	if !ok || i >= len(rec) || rec[i] == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(rec[i], 64)
	if err != nil {
		return fallback
	}
	return v
}
