package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/cwygoda/fetchdata/internal/domain"
	"github.com/cwygoda/fetchdata/internal/progress"
)

// ProgressSource provides the active batch's progress.
type ProgressSource interface {
	Current() progress.Snapshot
}

// Server is the HTTP adapter exposing batch status while a run is active.
type Server struct {
	progress ProgressSource
	runs     domain.RunStore
	metrics  http.Handler
	mux      *http.ServeMux
	server   *http.Server
}

// NewServer creates a new HTTP server. runs may be nil when the ledger is
// disabled; metrics may be nil to omit /metrics.
func NewServer(src ProgressSource, runs domain.RunStore, metrics http.Handler, addr string) *Server {
	s := &Server{
		progress: src,
		runs:     runs,
		metrics:  metrics,
		mux:      http.NewServeMux(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /progress", s.handleProgress)
	s.mux.HandleFunc("GET /runs/latest", s.handleLatestRun)
	s.mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

// progressResponse is the JSON response for GET /progress.
type progressResponse struct {
	Active     bool    `json:"active"`
	Label      string  `json:"label"`
	BytesDone  int64   `json:"bytes_done"`
	TotalBytes int64   `json:"total_bytes"`
	Percent    float64 `json:"percent"`
}

// runResponse is the JSON response for run endpoints.
type runResponse struct {
	ID             string            `json:"id"`
	DestinationDir string            `json:"destination_dir"`
	Force          bool              `json:"force"`
	Entries        int               `json:"entries"`
	TotalBytes     int64             `json:"total_bytes"`
	BytesDone      int64             `json:"bytes_done"`
	StartedAt      string            `json:"started_at"`
	FinishedAt     string            `json:"finished_at,omitempty"`
	Outcomes       []outcomeResponse `json:"outcomes"`
}

type outcomeResponse struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason,omitempty"`
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	snap := s.progress.Current()
	s.writeJSON(w, http.StatusOK, progressResponse{
		Active:     snap.Active,
		Label:      snap.Label,
		BytesDone:  snap.BytesDone,
		TotalBytes: snap.TotalBytes,
		Percent:    snap.Percent(),
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run ledger disabled")
		return
	}
	run, err := s.runs.GetRun(r.Context(), r.PathValue("id"))
	s.writeRun(w, run, err)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run ledger disabled")
		return
	}
	run, err := s.runs.LatestRun(r.Context())
	s.writeRun(w, run, err)
}

func (s *Server) writeRun(w http.ResponseWriter, run *domain.RunRecord, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		log.Printf("get run error: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, runToResponse(run))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func runToResponse(run *domain.RunRecord) runResponse {
	resp := runResponse{
		ID:             run.ID,
		DestinationDir: run.DestinationDir,
		Force:          run.Force,
		Entries:        run.Entries,
		TotalBytes:     run.TotalBytes,
		BytesDone:      run.BytesDone,
		StartedAt:      run.StartedAt.UTC().Format(time.RFC3339),
		Outcomes:       make([]outcomeResponse, 0, len(run.Outcomes)),
	}
	if run.FinishedAt != nil {
		resp.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	for _, o := range run.Outcomes {
		resp.Outcomes = append(resp.Outcomes, outcomeResponse{
			Position: o.Position,
			Name:     o.Name,
			URL:      o.URL,
			Kind:     string(o.Kind),
			Outcome:  string(o.Outcome),
			Reason:   o.Reason,
		})
	}
	return resp
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}
