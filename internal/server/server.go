// Package server exposes pipeline status over HTTP, live events over a
// WebSocket and metrics for Prometheus.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/cliprelay/internal/feed"
	"github.com/GriffinCanCode/cliprelay/internal/trace"
)

// StatusFunc returns a JSON-encodable status snapshot.
type StatusFunc func() any

// HelloMessage is the first message on a websocket, carrying recent events.
type HelloMessage struct {
	Type    string       `json:"type"`
	Backlog []feed.Event `json:"backlog"`
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	feed    *feed.Feed
	status  StatusFunc
	metrics http.Handler
}

// New creates a server. metrics may be nil to disable /metrics.
func New(f *feed.Feed, status StatusFunc, metrics http.Handler) *Server {
	return &Server{feed: f, status: status, metrics: metrics}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/translation", s.handleTranslation)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("status server starting", "http", addr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	log := trace.Logger(r.Context())
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// Clients only listen; CloseRead handles pings and cancels ctx on close.
	ctx := conn.CloseRead(r.Context())

	events, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()

	if err := s.write(ctx, conn, HelloMessage{Type: "hello", Backlog: s.feed.Recent(BacklogEvents)}); err != nil {
		log.Debug("websocket write error", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("websocket disconnected", "remote", r.RemoteAddr)
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := s.write(ctx, conn, e); err != nil {
				log.Debug("websocket write error", "error", err)
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	n := BacklogEvents
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = min(parsed, MaxEventsQuery)
	}
	writeJSON(w, s.feed.Recent(n))
}

func (s *Server) handleTranslation(w http.ResponseWriter, r *http.Request) {
	e, ok := s.feed.Latest(feed.KindTranslation)
	if !ok {
		http.Error(w, "no translation yet", http.StatusNotFound)
		return
	}
	writeJSON(w, e)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
