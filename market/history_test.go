package market

import (
	"context"
	"errors"
	"testing"
	"time"
)

func d(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func testHistory(t *testing.T) *History {
	t.Helper()
	provider := NewStatic(map[string][]Quote{
		"AAPL": {
			{Ticker: "AAPL", Date: d("2024-01-08"), Close: 100},
			{Ticker: "AAPL", Date: d("2024-01-09"), Close: 101},
			{Ticker: "AAPL", Date: d("2024-01-11"), Close: 103},
		},
	})
	h, err := Prefetch(context.Background(), provider, []string{"AAPL", "MSFT"},
		d("2024-01-01"), d("2024-01-31"))
	if err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	return h
}

func TestHistoryLatestClose(t *testing.T) {
	h := testHistory(t)

	// Exact hit.
	px, ok := h.LatestClose("AAPL", d("2024-01-09"), d("2024-01-09"))
	if !ok || px != 101 {
		t.Fatalf("got %v %v, want 101 true", px, ok)
	}

	// Gap day resolves to the newest quote inside the interval.
	px, ok = h.LatestClose("AAPL", d("2024-01-09"), d("2024-01-10"))
	if !ok || px != 101 {
		t.Fatalf("got %v %v, want 101 true", px, ok)
	}

	// Interval with no data.
	if _, ok := h.LatestClose("AAPL", d("2024-01-10"), d("2024-01-10")); ok {
		t.Fatal("expected no close inside an empty interval")
	}

	// Ticker with no data at all.
	if _, ok := h.LatestClose("MSFT", d("2024-01-01"), d("2024-01-31")); ok {
		t.Fatal("expected no close for an empty ticker")
	}
}

func TestHistoryWindow(t *testing.T) {
	h := testHistory(t)

	w := h.Window("AAPL", d("2024-01-09"), d("2024-01-11"))
	if len(w) != 2 {
		t.Fatalf("window = %d quotes, want 2", len(w))
	}
	if w[0].Close != 101 || w[1].Close != 103 {
		t.Fatalf("window closes = %v, %v", w[0].Close, w[1].Close)
	}

	if w := h.Window("AAPL", d("2024-02-01"), d("2024-02-29")); len(w) != 0 {
		t.Fatalf("out-of-range window = %d quotes", len(w))
	}
	if w := h.Window("MSFT", d("2024-01-01"), d("2024-01-31")); len(w) != 0 {
		t.Fatalf("empty ticker window = %d quotes", len(w))
	}
}

type flakyProvider struct {
	failures int
	calls    int
}

func (f *flakyProvider) Prices(_ context.Context, ticker string, _, _ time.Time) ([]Quote, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient")
	}
	return []Quote{{Ticker: ticker, Date: d("2024-01-08"), Close: 100}}, nil
}

func TestPrefetchRetriesTransientErrors(t *testing.T) {
	p := &flakyProvider{failures: 2}
	h, err := Prefetch(context.Background(), p, []string{"AAPL"},
		d("2024-01-01"), d("2024-01-31"))
	if err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	if _, ok := h.LatestClose("AAPL", d("2024-01-01"), d("2024-01-31")); !ok {
		t.Fatal("no data after retries")
	}
	if p.calls != 3 {
		t.Fatalf("provider called %d times, want 3", p.calls)
	}
}

func TestPrefetchFailsAfterExhaustedRetries(t *testing.T) {
	p := &flakyProvider{failures: 10}
	if _, err := Prefetch(context.Background(), p, []string{"AAPL"},
		d("2024-01-01"), d("2024-01-31")); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
}
