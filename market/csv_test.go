package market

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleCSV = `date,open,high,low,close,volume
2024-01-08,99.5,101.0,99.0,100.0,1000000
2024-01-09,100.0,102.5,99.8,101.5,900000
2024-01-10,101.5,101.8,100.1,100.4,800000
`

func TestCSVDirReadsPlainFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "AAPL.csv"), []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}

	quotes, err := NewCSVDir(dir).Prices(context.Background(), "aapl",
		d("2024-01-01"), d("2024-01-31"))
	if err != nil {
		t.Fatalf("prices: %v", err)
	}
	if len(quotes) != 3 {
		t.Fatalf("got %d quotes, want 3", len(quotes))
	}
	if quotes[0].Ticker != "AAPL" {
		t.Fatalf("ticker = %q, want AAPL", quotes[0].Ticker)
	}
	if quotes[1].Close != 101.5 || quotes[1].High != 102.5 {
		t.Fatalf("second quote = %+v", quotes[1])
	}
}

func TestCSVDirFiltersRange(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "AAPL.csv"), []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}

	quotes, err := NewCSVDir(dir).Prices(context.Background(), "AAPL",
		d("2024-01-09"), d("2024-01-09"))
	if err != nil {
		t.Fatalf("prices: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Close != 101.5 {
		t.Fatalf("filtered quotes = %+v", quotes)
	}
}

func TestCSVDirReadsGzip(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "MSFT.csv.gz"))
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(sampleCSV)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	quotes, err := NewCSVDir(dir).Prices(context.Background(), "MSFT",
		d("2024-01-01"), d("2024-01-31"))
	if err != nil {
		t.Fatalf("prices: %v", err)
	}
	if len(quotes) != 3 {
		t.Fatalf("got %d quotes, want 3", len(quotes))
	}
}

func TestCSVDirMissingFileIsNoData(t *testing.T) {
	quotes, err := NewCSVDir(t.TempDir()).Prices(context.Background(), "NOPE",
		d("2024-01-01"), d("2024-01-31"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(quotes) != 0 {
		t.Fatalf("got %d quotes from missing file", len(quotes))
	}
}

func TestCSVDirRequiresDateAndClose(t *testing.T) {
	dir := t.TempDir()
	bad := "date,open\n2024-01-08,99.5\n"
	if err := os.WriteFile(filepath.Join(dir, "BAD.csv"), []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewCSVDir(dir).Prices(context.Background(), "BAD",
		d("2024-01-01"), d("2024-01-31")); err == nil {
		t.Fatal("expected error for missing close column")
	}
}

func TestCSVDirOptionalColumnsFallBack(t *testing.T) {
	dir := t.TempDir()
	minimal := "date,close\n2024-01-08,100.0\n"
	if err := os.WriteFile(filepath.Join(dir, "MIN.csv"), []byte(minimal), 0644); err != nil {
		t.Fatal(err)
	}

	quotes, err := NewCSVDir(dir).Prices(context.Background(), "MIN",
		d("2024-01-01"), d("2024-01-31"))
	if err != nil {
		t.Fatalf("prices: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("got %d quotes, want 1", len(quotes))
	}
	q := quotes[0]
	if q.Open != 100 || q.High != 100 || q.Low != 100 || q.Volume != 0 {
		t.Fatalf("fallback columns wrong: %+v", q)
	}
}
