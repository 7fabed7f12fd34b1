package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"backtestd/session"
	"backtestd/sim"
)

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (session.Request, bool) {
	var req session.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return req, false
	}
	if req.InitialCapital == 0 {
		req.InitialCapital = 100000
	}
	return req, true
}

// handleStart registers a session and launches its engine, returning the
// id plus stream/status URLs.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	sess, err := s.registry.Create(req)
	if err != nil {
		if errors.Is(err, session.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.registry.Start(sess)

	s.log.Info("backtest started", "session", sess.ID,
		"tickers", req.Tickers, "strategies", req.Strategies)

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"status":     "started",
		"stream_url": "/backtest/stream/" + sess.ID,
		"status_url": "/backtest/status/" + sess.ID,
	})
}

// handleRunSync runs a backtest to completion before responding. Long
// windows can hold the connection for minutes; the streaming endpoints
// are the recommended surface.
func (s *Server) handleRunSync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	sess, err := s.registry.Create(req)
	if err != nil {
		if errors.Is(err, session.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer s.registry.Cleanup(sess.ID)

	s.registry.Start(sess)

	select {
	case <-sess.Done():
	case <-r.Context().Done():
		_ = s.registry.Cancel(sess.ID)
		<-sess.Done()
		return
	}

	info := sess.Info(true)
	if info.Status == session.StatusFailed {
		writeError(w, http.StatusInternalServerError, "backtest failed: "+info.ErrorMessage)
		return
	}

	resp := map[string]any{
		"status":              info.Status,
		"performance_metrics": info.Metrics,
		"portfolio_history":   historyPoints(info.Snapshots),
	}
	if n := len(info.Snapshots); n > 0 {
		last := info.Snapshots[n-1]
		resp["final_portfolio"] = map[string]any{
			"cash":        last.Cash,
			"positions":   last.Positions,
			"total_value": last.TotalValue,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type historyPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

func historyPoints(snaps []sim.Snapshot) []historyPoint {
	out := make([]historyPoint, len(snaps))
	for i, snap := range snaps {
		out[i] = historyPoint{
			Date:  snap.Date.Format("2006-01-02"),
			Value: snap.TotalValue,
		}
	}
	return out
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "backtest not found")
		return
	}
	writeJSON(w, http.StatusOK, sess.Info(r.URL.Query().Get("detail") == "true"))
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.registry.List()})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("id")
	if err := s.registry.Cancel(sid); err != nil {
		writeError(w, http.StatusNotFound, "backtest not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sid,
		"status":     string(session.StatusCancelled),
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("id")
	if _, ok := s.registry.Get(sid); !ok {
		writeError(w, http.StatusNotFound, "backtest not found")
		return
	}
	s.registry.Cleanup(sid)
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sid,
		"status":     "removed",
	})
}

func (s *Server) handleCleanupAll(w http.ResponseWriter, _ *http.Request) {
	n := s.registry.CleanupAll()
	writeJSON(w, http.StatusOK, map[string]any{"removed": n})
}
