package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/robit-man/gemma3-evaluation-app/pkg/convo"
	"github.com/robit-man/gemma3-evaluation-app/pkg/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Local single-user app; the page is served from the same process.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEvent is one frame pushed to the browser: state transitions while a
// turn runs, then the final response.
type wsEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Response  string `json:"response,omitempty"`
	State     string `json:"state,omitempty"`
	Error     string `json:"error,omitempty"`
}

// wsWriter serializes writes; gorilla allows one concurrent writer.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(ev wsEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.WriteJSON(ev)
}

func (w *wsWriter) OnStateChange(event orchestrator.StateChange) {
	w.send(wsEvent{
		Type:   "state",
		From:   event.FromState.String(),
		To:     event.ToState.String(),
		Reason: event.Reason,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	writer := &wsWriter{conn: conn}
	// Each connection gets its own session so the state listener's
	// lifetime matches the connection's.
	sess := s.sessions.GetOrCreate("")
	sess.Orchestrator.AddListener(writer)
	writer.send(wsEvent{Type: "session", SessionID: sess.ID})

	for {
		var req sendRequest
		if err := conn.ReadJSON(&req); err != nil {
			s.sessions.Reset(sess.ID)
			return
		}

		var image *convo.ImageBlob
		if req.ImageData != "" {
			if blob, _, err := s.frames.StoreDataURL(req.ImageData); err == nil {
				image = &blob
			}
		}

		result := sess.Orchestrator.RunTurn(r.Context(), req.ChatText, image)
		ev := wsEvent{
			Type:      "response",
			SessionID: sess.ID,
			Response:  result.Text,
			State:     result.State.String(),
		}
		if result.Err != nil {
			ev.Error = result.Err.Error()
		}
		writer.send(ev)
	}
}
