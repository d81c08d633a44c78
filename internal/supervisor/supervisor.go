package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/internal/adapters/config"
	"github.com/selivandex/whale-monitor/internal/sources"
	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

// Supervisor runs every ingestion source in its own goroutine with
// restart backoff, a per-source circuit breaker and an emit-based health
// probe. One broken source never takes down the others.
type Supervisor struct {
	cfg  *config.SupervisorConfig
	emit sources.Emit

	mu      sync.Mutex
	states  map[string]*sourceState
	wg      sync.WaitGroup
	started bool
}

type sourceState struct {
	source   sources.Source
	breaker  *gobreaker.CircuitBreaker
	mu       sync.Mutex
	lastEmit time.Time
	restarts int
	lastErr  error
}

// SourceHealth is the reported state of one source
type SourceHealth struct {
	LastEmit     time.Time `json:"last_emit"`
	ID           string    `json:"id"`
	CircuitState string    `json:"circuit_state"`
	LastError    string    `json:"last_error,omitempty"`
	Restarts     int       `json:"restarts"`
	Healthy      bool      `json:"healthy"`
}

// New creates a supervisor delivering into the given emit function
func New(cfg *config.SupervisorConfig, emit sources.Emit) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		emit:   emit,
		states: make(map[string]*sourceState),
	}
}

// Add registers a source. Must be called before Start.
func (s *Supervisor) Add(src sources.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &sourceState{source: src}
	st.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     src.ID(),
		Interval: s.cfg.BreakerInterval,
		Timeout:  s.cfg.BreakerHalfOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("⚡ Source circuit state changed",
				zap.String("source", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	s.states[src.ID()] = st
}

// Start launches every registered source
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	for _, st := range s.states {
		s.wg.Add(1)
		go s.runSource(ctx, st)
	}

	logger.Info("🚀 Source supervisor started",
		zap.Int("sources", len(s.states)),
	)
}

// Wait blocks until every source goroutine has exited
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// runSource is the restart loop for one source
func (s *Supervisor) runSource(ctx context.Context, st *sourceState) {
	defer s.wg.Done()

	backoff := s.cfg.BackoffBase

	for {
		if ctx.Err() != nil {
			return
		}

		started := time.Now()
		_, err := st.breaker.Execute(func() (interface{}, error) {
			return nil, st.source.Run(ctx, s.trackedEmit(st))
		})

		if ctx.Err() != nil {
			logger.Info("🛑 Source stopped",
				zap.String("source", st.source.ID()),
			)
			return
		}

		if err == nil {
			err = errors.New("source stream ended")
		}
		st.mu.Lock()
		st.lastErr = err
		st.restarts++
		st.mu.Unlock()

		// A long healthy run resets the backoff ladder
		if time.Since(started) > s.cfg.HealthWindow {
			backoff = s.cfg.BackoffBase
		}

		logger.Warn("source failed, restarting",
			zap.String("source", st.source.ID()),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.cfg.BackoffCap {
			backoff = s.cfg.BackoffCap
		}
	}
}

// trackedEmit wraps the pipeline emit with the health probe timestamp
func (s *Supervisor) trackedEmit(st *sourceState) sources.Emit {
	return func(ctx context.Context, t *models.RawTransfer) error {
		if err := s.emit(ctx, t); err != nil {
			return err
		}
		st.mu.Lock()
		st.lastEmit = time.Now()
		st.mu.Unlock()
		return nil
	}
}

// Health reports the state of every source. A source is healthy when it
// emitted within the health window and its circuit is closed.
func (s *Supervisor) Health() []SourceHealth {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SourceHealth, 0, len(s.states))
	for id, st := range s.states {
		st.mu.Lock()
		h := SourceHealth{
			ID:           id,
			LastEmit:     st.lastEmit,
			CircuitState: st.breaker.State().String(),
			Restarts:     st.restarts,
		}
		if st.lastErr != nil {
			h.LastError = st.lastErr.Error()
		}
		h.Healthy = st.breaker.State() == gobreaker.StateClosed &&
			!st.lastEmit.IsZero() &&
			time.Since(st.lastEmit) <= s.cfg.HealthWindow
		st.mu.Unlock()
		out = append(out, h)
	}
	return out
}
