// Package api exposes the read-only HTTP interface for the menu service.
// Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /dining and /dining/{hall} for the current snapshot.
//   - GET /status for the last cycle's outcome.
//   - POST /refresh to request an on-demand cycle.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/columbiacals/menud/internal/menu"
	"github.com/columbiacals/menud/internal/metrics"
)

// SnapshotReader is the read side of the snapshot store.
type SnapshotReader interface {
	Read() (menu.Snapshot, bool)
}

// Refresher is the scheduler surface the API needs.
type Refresher interface {
	Trigger()
	Running() bool
	LastResult() (menu.CycleResult, bool)
}

// Server wires HTTP handlers to the snapshot store and scheduler. Every
// handler reads published state only; none of them can block on a live
// scrape.
type Server struct {
	router    chi.Router
	snapshots SnapshotReader
	refresher Refresher
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(snapshots SnapshotReader, refresher Refresher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		snapshots: snapshots,
		refresher: refresher,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/dining", s.getDining)
	r.Get("/dining/{hall}", s.getDiningHall)
	r.Get("/status", s.getStatus)
	r.Post("/refresh", s.postRefresh)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if _, ok := s.snapshots.Read(); !ok {
		writeError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type diningResponse struct {
	Halls       []menu.DiningHall `json:"halls"`
	GeneratedAt *time.Time        `json:"generated_at"`
}

// getDining handles GET /dining?university=. An unknown university tag
// yields an empty list, not an error; an unpublished store yields an empty
// list with a null generated_at. Reads never 5xx.
func (s *Server) getDining(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshots.Read()
	if !ok {
		writeJSON(w, http.StatusOK, diningResponse{Halls: []menu.DiningHall{}})
		return
	}

	halls := snap.Halls
	if tag := strings.TrimSpace(r.URL.Query().Get("university")); tag != "" {
		halls = snap.ByUniversity(strings.ToLower(tag))
	}
	if halls == nil {
		halls = []menu.DiningHall{}
	}
	writeJSON(w, http.StatusOK, diningResponse{
		Halls:       halls,
		GeneratedAt: &snap.GeneratedAt,
	})
}

// getDiningHall handles GET /dining/{hall}. The name matches
// case-insensitively as a substring, so "/dining/jay" finds "John Jay".
// This is the only read endpoint allowed a non-200.
func (s *Server) getDiningHall(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "hall"))
	snap, ok := s.snapshots.Read()
	if !ok {
		writeError(w, http.StatusNotFound, "dining hall not found")
		return
	}
	for _, hall := range snap.Halls {
		if strings.Contains(strings.ToLower(hall.Name), name) {
			writeJSON(w, http.StatusOK, hall)
			return
		}
	}
	writeError(w, http.StatusNotFound, "dining hall not found")
}

type statusResponse struct {
	Status       menu.CycleStatus                 `json:"status"`
	Running      bool                             `json:"running"`
	GeneratedAt  *time.Time                       `json:"generated_at"`
	StartedAt    *time.Time                       `json:"started_at,omitempty"`
	FinishedAt   *time.Time                       `json:"finished_at,omitempty"`
	Universities map[string]menu.UniversityStatus `json:"universities,omitempty"`
}

// getStatus handles GET /status. Before the first cycle completes the
// status is "pending".
func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Status:  "pending",
		Running: s.refresher.Running(),
	}
	if snap, ok := s.snapshots.Read(); ok {
		resp.GeneratedAt = &snap.GeneratedAt
	}
	if result, ok := s.refresher.LastResult(); ok {
		resp.Status = result.Status
		resp.StartedAt = &result.StartedAt
		resp.FinishedAt = &result.FinishedAt
		resp.Universities = result.Universities
	}
	writeJSON(w, http.StatusOK, resp)
}

// postRefresh handles POST /refresh. It returns immediately; a refresh
// requested while a cycle is running coalesces into that cycle.
func (s *Server) postRefresh(w http.ResponseWriter, _ *http.Request) {
	s.refresher.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh requested"})
}
