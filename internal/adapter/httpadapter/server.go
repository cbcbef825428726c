package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes health, readiness, metrics, and batch status endpoints while
// a long download or prepare run is in progress.
type Server struct {
	httpServer *http.Server
	status     *RunStatus
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /status routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, status *RunStatus, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		status: status,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.status.Snapshot()) //nolint:errcheck // best-effort status response
}

// RunStatus tracks the progress of the current batch command.
type RunStatus struct {
	mu   sync.Mutex
	snap StatusSnapshot
}

// StatusSnapshot is the JSON body served on /status.
type StatusSnapshot struct {
	Command   string         `json:"command"`
	RunID     string         `json:"run_id,omitempty"`
	Phase     string         `json:"phase"`
	StartedAt time.Time      `json:"started_at"`
	Counts    map[string]int `json:"counts,omitempty"`
}

// NewRunStatus starts tracking a command.
func NewRunStatus(command string, startedAt time.Time) *RunStatus {
	return &RunStatus{snap: StatusSnapshot{Command: command, Phase: "starting", StartedAt: startedAt}}
}

// SetPhase records the current phase and, optionally, its run id.
func (r *RunStatus) SetPhase(phase, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Phase = phase
	if runID != "" {
		r.snap.RunID = runID
	}
}

// SetCounts replaces the outcome counts.
func (r *RunStatus) SetCounts(counts map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Counts = counts
}

// Snapshot returns a copy safe to serialize.
func (r *RunStatus) Snapshot() StatusSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snap
	if r.snap.Counts != nil {
		snap.Counts = make(map[string]int, len(r.snap.Counts))
		for k, v := range r.snap.Counts {
			snap.Counts[k] = v
		}
	}
	return snap
}
