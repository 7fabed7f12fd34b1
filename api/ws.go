package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"backtestd/sim"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Session ids are unguessable ULIDs; the stream carries no secrets
	// beyond the session's own output.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsMessage is the websocket envelope: the event-type tag plus the same
// payload the SSE transport sends as its data body.
type wsMessage struct {
	Type sim.EventType `json:"type"`
	Data sim.Event     `json:"data"`
}

// handleStreamWS mirrors the SSE stream over a websocket for clients that
// prefer a bidirectional transport. Only the server writes; client frames
// are read solely to detect disconnects.
func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("id")
	sess, ok := s.registry.Get(sid)
	if !ok {
		writeError(w, http.StatusNotFound, "backtest not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "session", sid, "err", err)
		return
	}
	defer conn.Close()
	defer s.registry.Cleanup(sid)

	// Discard inbound frames; the read pump exists so conn notices a
	// closed peer and the drain loop can exit via the request context.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.drain(sess, r, func(ev sim.Event) bool {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(wsMessage{Type: ev.Kind(), Data: ev}) == nil
	})

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
