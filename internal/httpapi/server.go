// Package httpapi exposes the decisions service over HTTP. It stands in for
// the chat platform: user commands and moderator buttons arrive as requests.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/LoMein123/DecisionsBot-v2/internal/board"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions"
)

// ChartStore resolves chart references to files.
type ChartStore interface {
	Path(ref string) (string, error)
}

// Server holds the handlers' dependencies.
type Server struct {
	svc    *decisions.Decisions
	board  *board.Board
	charts ChartStore
	logger *slog.Logger
}

// New creates a Server. charts and logger may be nil.
func New(svc *decisions.Decisions, b *board.Board, charts ChartStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, board: b, charts: charts, logger: logger}
}

// Router builds the route table.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		// User commands
		r.Post("/decisions", s.submitDecision)
		r.Post("/deletions", s.requestDeletion)
		r.Get("/statistics", s.statistics)
		r.Get("/years", s.years)

		// Moderation
		r.Get("/moderation", s.pending)
		r.Post("/moderation/{handle}/approve", s.approve)
		r.Post("/moderation/{handle}/reject", s.reject)

		// Announcement channel
		r.Get("/announcements", s.announcements)
		r.Get("/users/{userID}/notifications", s.notifications)
		r.Get("/charts/{name}", s.chart)
	})

	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
