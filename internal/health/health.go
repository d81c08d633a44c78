package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/internal/adapters/database"
	"github.com/selivandex/whale-monitor/internal/pipeline"
	"github.com/selivandex/whale-monitor/internal/supervisor"
	"github.com/selivandex/whale-monitor/pkg/logger"
)

// Server provides health check HTTP endpoints for K8s plus the stats
// surface the CLI reads
type Server struct {
	server     *http.Server
	db         *database.DB
	pipeline   *pipeline.Pipeline
	supervisor *supervisor.Supervisor
	ready      bool
	readyMu    sync.RWMutex
	startTime  time.Time
}

// HealthStatus represents system health
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ReadinessStatus represents system readiness
type ReadinessStatus struct {
	Ready     bool              `json:"ready"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// StatsStatus is the per-stage counter and per-source state report
type StatsStatus struct {
	Timestamp string                    `json:"timestamp"`
	Uptime    string                    `json:"uptime"`
	Stages    map[string]int64          `json:"stages"`
	Sources   []supervisor.SourceHealth `json:"sources"`
}

// NewServer creates new health check server
func NewServer(
	port string,
	db *database.DB,
	pl *pipeline.Pipeline,
	sup *supervisor.Supervisor,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		server: &http.Server{
			Addr:         ":" + port,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		db:         db,
		pipeline:   pl,
		supervisor: sup,
		startTime:  time.Now(),
	}

	mux.HandleFunc("/health", s.handleHealth)    // Liveness probe
	mux.HandleFunc("/ready", s.handleReadiness)  // Readiness probe
	mux.HandleFunc("/healthz", s.handleHealth)   // Alias
	mux.HandleFunc("/readyz", s.handleReadiness) // Alias
	mux.HandleFunc("/stats", s.handleStats)      // CLI stats surface

	return s
}

// Start starts the health check server
func (s *Server) Start() error {
	logger.Info("health check server starting",
		zap.String("addr", s.server.Addr),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("stopping health check server...")
	return s.server.Shutdown(ctx)
}

// SetReady marks the service ready once the pipeline is running
func (s *Server) SetReady(ready bool) {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	s.ready = ready
}

func (s *Server) isReady() bool {
	s.readyMu.RLock()
	defer s.readyMu.RUnlock()
	return s.ready
}

// handleHealth answers the liveness probe. The process is alive as long
// as it can respond; dependency state belongs to readiness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(status)
}

// handleReadiness answers the readiness probe: pipeline started and the
// database reachable
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	checks := make(map[string]string)
	ready := s.isReady()

	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			checks["database"] = "failed: " + err.Error()
			ready = false
		} else {
			checks["database"] = "ok"
		}
	}

	if s.supervisor != nil {
		healthy := 0
		sources := s.supervisor.Health()
		for _, src := range sources {
			if src.Healthy {
				healthy++
			}
		}
		if len(sources) > 0 && healthy == 0 {
			checks["sources"] = "no healthy sources"
			ready = false
		} else {
			checks["sources"] = "ok"
		}
	}

	status := ReadinessStatus{
		Ready:     ready,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// handleStats reports per-stage counters and per-source circuit states
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	status := StatsStatus{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.pipeline != nil {
		status.Stages = s.pipeline.Counters().Snapshot()
	}
	if s.supervisor != nil {
		status.Sources = s.supervisor.Health()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(status)
}
