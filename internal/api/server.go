// Package api provides the local status HTTP server for the HashPlane agent.
// It is an observability surface only: identity, gate state, recent journal
// rows, and Prometheus metrics. It has no control endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hashplane-network/hashplane/internal/agent"
	"github.com/hashplane-network/hashplane/internal/infra/sqlite"
)

// recentLimit caps journal rows returned per request.
const recentLimit = 50

// Server is the agent's local status server.
type Server struct {
	agent *agent.Agent
}

// NewServer creates a status server for a running agent.
func NewServer(a *agent.Agent) *Server {
	return &Server{agent: a}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/shares", s.handleShares)
		r.Get("/jobs", s.handleJobs)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agent.Snapshot())
}

func (s *Server) handleShares(w http.ResponseWriter, r *http.Request) {
	db := s.agent.Journal()
	if db == nil {
		writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	shares, err := db.RecentShares(recentLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if shares == nil {
		shares = []sqlite.ShareRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"shares": shares})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	db := s.agent.Journal()
	if db == nil {
		writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	jobs, err := db.RecentJobs(recentLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []sqlite.JobRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
