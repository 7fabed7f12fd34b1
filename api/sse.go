package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"backtestd/session"
	"backtestd/sim"
)

// handleStreamSSE drains a session's event queue as Server-Sent Events.
// The consumer runs on the request goroutine, completely separate from
// the engine; they only meet at the queue. Once a terminal event is
// forwarded (or the session is declared dead) the session is evicted.
func (s *Server) handleStreamSSE(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("id")
	sess, ok := s.registry.Get(sid)
	if !ok {
		writeError(w, http.StatusNotFound, "backtest not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// A dropped connection or finished stream both end in eviction; a
	// still-running engine gets cancelled by Cleanup.
	defer s.registry.Cleanup(sid)

	s.drain(sess, r, func(ev sim.Event) bool {
		if err := writeSSE(w, ev); err != nil {
			return false
		}
		flusher.Flush()
		return true
	})
}

// drain implements the shared consumer policy for both stream transports:
// bounded waits, keepalives on idle, terminal detection, and dead-session
// timeout. send returns false to abort (client gone, write error).
func (s *Server) drain(sess *session.Session, r *http.Request, send func(sim.Event) bool) {
	idle := 0

	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		ev, ok := sess.Queue().Pop(s.drainTimeout)
		if !ok {
			// Done closes only after the terminal event is published, so
			// done plus an empty queue means everything was forwarded. The
			// status alone is not enough: cancellation marks the session
			// terminal while the engine is still finishing its day.
			select {
			case <-sess.Done():
				if sess.Queue().Len() == 0 {
					return
				}
				continue
			default:
			}
			idle++
			if idle >= s.maxIdlePolls {
				s.log.Warn("session stream timed out", "session", sess.ID)
				send(sim.TimeoutEvent{
					SessionID: sess.ID,
					Message:   "no events received; session presumed dead",
				})
				return
			}
			if !send(sim.KeepaliveEvent{}) {
				return
			}
			continue
		}

		idle = 0
		if !send(ev) {
			return
		}
		if ev.Kind() == sim.EventComplete {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, ev sim.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind(), data)
	return err
}
