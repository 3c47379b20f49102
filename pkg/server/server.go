// Package server is the thin HTTP front end: it parses requests, hands
// them to the per-session orchestrator and renders JSON replies. All
// conversation logic lives behind the session manager.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/robit-man/gemma3-evaluation-app/pkg/capture"
	"github.com/robit-man/gemma3-evaluation-app/pkg/convo"
	"github.com/robit-man/gemma3-evaluation-app/pkg/orchestrator"
	"github.com/robit-man/gemma3-evaluation-app/pkg/session"
)

type Options struct {
	Addr     string
	Sessions *session.Manager
	Frames   *capture.FrameStore
	Log      *slog.Logger
}

type Server struct {
	addr     string
	sessions *session.Manager
	frames   *capture.FrameStore
	log      *slog.Logger
	mux      *http.ServeMux
}

func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	s := &Server{
		addr:     opts.Addr,
		sessions: opts.Sessions,
		frames:   opts.Frames,
		log:      opts.Log,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("POST /send", s.handleSend)
	mux.HandleFunc("POST /upload_frame", s.handleUploadFrame)
	mux.HandleFunc("GET /ws", s.handleWS)
	s.mux = mux
	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type sendRequest struct {
	SessionID string `json:"session_id"`
	ChatText  string `json:"chat_text"`
	ImageData string `json:"image_data"`
}

type sendResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var image *convo.ImageBlob
	if req.ImageData != "" {
		blob, _, err := s.frames.StoreDataURL(req.ImageData)
		if err != nil {
			s.log.Warn("dropping malformed frame", "err", err)
		} else {
			image = &blob
		}
	}

	sess := s.sessions.GetOrCreate(req.SessionID)
	result := sess.Orchestrator.RunTurn(r.Context(), req.ChatText, image)

	resp := sendResponse{
		SessionID: sess.ID,
		Response:  result.Text,
		State:     result.State.String(),
	}
	status := http.StatusOK
	if result.State == orchestrator.StateFailed {
		resp.Error = result.Err.Error()
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

type uploadFrameRequest struct {
	ImageData string `json:"image_data"`
}

func (s *Server) handleUploadFrame(w http.ResponseWriter, r *http.Request) {
	var req uploadFrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImageData == "" {
		http.Error(w, "no image data provided", http.StatusBadRequest)
		return
	}
	_, path, err := s.frames.StoreDataURL(req.ImageData)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": path})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
