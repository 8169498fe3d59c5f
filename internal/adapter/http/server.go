package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"github.com/couchcryptid/risk-signal-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes job triggers plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	jobs       []string
}

// NewServer creates an HTTP server with /jobs/{name}, /healthz, /readyz, and
// /metrics routes. Jobs are triggered with GET or POST; query parameters are
// passed through to the job.
func NewServer(addr string, ready sharedobs.ReadinessChecker, jobs []pipeline.Job, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// Backfills and retries can keep a job busy for minutes.
			WriteTimeout: 15 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	for _, job := range jobs {
		h := s.handleJob(job)
		mux.HandleFunc("GET /jobs/"+job.Name(), h)
		mux.HandleFunc("POST /jobs/"+job.Name(), h)
		s.jobs = append(s.jobs, job.Name())
	}
	slices.Sort(s.jobs)
	mux.HandleFunc("GET /jobs", s.handleList)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr, "jobs", s.jobs)
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

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"jobs": s.jobs})
}

// handleJob maps a run to 200 (success or partial success), 400 (invalid
// parameters), 409 (already running), or 500 (failed run).
func (s *Server) handleJob(job pipeline.Job) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("job panicked", "job", job.Name(), "panic", rec)
				writeJSON(w, http.StatusInternalServerError, errorBody(fmt.Sprintf("internal error: %v", rec)))
			}
		}()

		// A run is not aborted when the caller goes away.
		report, err := job.Run(context.WithoutCancel(r.Context()), r.URL.Query())
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, report)
		case pipeline.IsParamError(err):
			writeJSON(w, http.StatusBadRequest, bodyOrError(report, err))
		case errors.Is(err, pipeline.ErrRunning):
			writeJSON(w, http.StatusConflict, bodyOrError(report, err))
		default:
			writeJSON(w, http.StatusInternalServerError, bodyOrError(report, err))
		}
	}
}

func bodyOrError(report pipeline.Report, err error) any {
	if report == nil {
		return errorBody(err.Error())
	}
	return report
}

func errorBody(msg string) map[string]string {
	return map[string]string{"status": domain.StatusError, "message": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
