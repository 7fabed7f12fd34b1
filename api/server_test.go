package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backtestd/market"
	"backtestd/session"
)

func testServer(t *testing.T) (*httptest.Server, *session.Registry) {
	t.Helper()

	start := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	var quotes []market.Quote
	for _, d := range market.BusinessDays(start, end) {
		quotes = append(quotes, market.Quote{Ticker: "AAPL", Date: d, Close: 100})
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := session.NewRegistry(
		market.NewStatic(map[string][]market.Quote{"AAPL": quotes}), nil, log)

	srv := NewServer(":0", registry, log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { registry.CleanupAll() })

	return ts, registry
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func validBody() map[string]any {
	return map[string]any{
		"tickers":         []string{"AAPL"},
		"strategies":      []string{"hold"},
		"start_date":      "2024-01-08",
		"end_date":        "2024-01-12",
		"initial_capital": 100_000,
	}
}

func TestStartAndStatus(t *testing.T) {
	ts, registry := testServer(t)

	resp := postJSON(t, ts.URL+"/backtest/start", validBody())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)

	sid, _ := body["session_id"].(string)
	if sid == "" {
		t.Fatalf("no session_id in %v", body)
	}
	if body["stream_url"] != "/backtest/stream/"+sid {
		t.Fatalf("stream_url = %v", body["stream_url"])
	}

	sess, ok := registry.Get(sid)
	if !ok {
		t.Fatal("session not registered")
	}
	select {
	case <-sess.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("session never finished")
	}

	resp, err := http.Get(ts.URL + "/backtest/status/" + sid + "?detail=true")
	if err != nil {
		t.Fatal(err)
	}
	status := decodeBody(t, resp)
	if status["status"] != "completed" {
		t.Fatalf("status = %v", status["status"])
	}
	if status["performance_metrics"] == nil {
		t.Fatal("no metrics on completed session")
	}
	if snaps, ok := status["portfolio_snapshots"].([]any); !ok || len(snaps) != 5 {
		t.Fatalf("snapshots = %v", status["portfolio_snapshots"])
	}
}

func TestStartRejectsInvalidRequest(t *testing.T) {
	ts, _ := testServer(t)

	body := validBody()
	body["tickers"] = []string{}
	resp := postJSON(t, ts.URL+"/backtest/start", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if msg := decodeBody(t, resp)["error"]; msg == "" {
		t.Fatal("no error message")
	}
}

func TestStartRejectsMalformedJSON(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Post(ts.URL+"/backtest/start", "application/json",
		strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStatusUnknownSession(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/backtest/status/no-such-id")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRunSync(t *testing.T) {
	ts, registry := testServer(t)

	resp := postJSON(t, ts.URL+"/backtest/run-sync", validBody())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)

	if body["status"] != "completed" {
		t.Fatalf("status = %v", body["status"])
	}
	if body["performance_metrics"] == nil {
		t.Fatal("no performance_metrics")
	}
	if hist, ok := body["portfolio_history"].([]any); !ok || len(hist) != 5 {
		t.Fatalf("portfolio_history = %v", body["portfolio_history"])
	}
	final, ok := body["final_portfolio"].(map[string]any)
	if !ok {
		t.Fatalf("final_portfolio = %v", body["final_portfolio"])
	}
	if final["total_value"].(float64) != 100_000 {
		t.Fatalf("total_value = %v", final["total_value"])
	}

	// Synchronous sessions are evicted once answered.
	if registry.Len() != 0 {
		t.Fatalf("registry holds %d sessions after run-sync", registry.Len())
	}
}

func TestCancelEndpoints(t *testing.T) {
	ts, registry := testServer(t)

	resp := postJSON(t, ts.URL+"/backtest/start", validBody())
	sid := decodeBody(t, resp)["session_id"].(string)

	resp = postJSON(t, ts.URL+"/backtest/cancel/"+sid, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	sess, _ := registry.Get(sid)
	select {
	case <-sess.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("cancelled session never finished")
	}

	resp = postJSON(t, ts.URL+"/backtest/cancel/unknown", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown cancel status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessionListAndCleanup(t *testing.T) {
	ts, registry := testServer(t)

	resp := postJSON(t, ts.URL+"/backtest/start", validBody())
	sid := decodeBody(t, resp)["session_id"].(string)

	resp, err := http.Get(ts.URL + "/backtest/sessions")
	if err != nil {
		t.Fatal(err)
	}
	list := decodeBody(t, resp)
	if sessions, ok := list["sessions"].([]any); !ok || len(sessions) != 1 {
		t.Fatalf("sessions = %v", list["sessions"])
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/backtest/"+sid, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if registry.Len() != 0 {
		t.Fatal("session not evicted")
	}

	// Deleting again 404s.
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/backtest/"+sid, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d", resp.StatusCode)
	}
}

func TestCleanupAllEndpoint(t *testing.T) {
	ts, registry := testServer(t)

	for i := 0; i < 2; i++ {
		resp := postJSON(t, ts.URL+"/backtest/start", validBody())
		resp.Body.Close()
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/backtest", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	body := decodeBody(t, resp)
	if body["removed"].(float64) != 2 {
		t.Fatalf("removed = %v", body["removed"])
	}
	if registry.Len() != 0 {
		t.Fatal("sessions left after cleanup all")
	}
}

func TestStreamSSE(t *testing.T) {
	ts, registry := testServer(t)

	resp := postJSON(t, ts.URL+"/backtest/start", validBody())
	sid := decodeBody(t, resp)["session_id"].(string)

	stream, err := http.Get(ts.URL + "/backtest/stream/" + sid)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Body.Close()

	if ct := stream.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	var kinds []string
	scanner := bufio.NewScanner(stream.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			kinds = append(kinds, strings.TrimPrefix(line, "event: "))
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read stream: %v", err)
	}

	if len(kinds) == 0 {
		t.Fatal("no events on stream")
	}
	if kinds[0] != "start" {
		t.Fatalf("first event = %q, want start", kinds[0])
	}
	if kinds[len(kinds)-1] != "complete" {
		t.Fatalf("last event = %q, want complete", kinds[len(kinds)-1])
	}
	for _, k := range kinds[:len(kinds)-1] {
		if k == "complete" {
			t.Fatal("complete emitted more than once")
		}
	}

	// The stream consumer evicts the session once the terminal event is
	// forwarded.
	if _, ok := registry.Get(sid); ok {
		t.Fatal("session still live after stream drained")
	}
}

func TestStreamUnknownSession(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/backtest/stream/missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
