package sink

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

// Retry schedule for transient storage failures
const (
	retryBase   = 200 * time.Millisecond
	retryFactor = 2
	retryCap    = 30 * time.Second
	maxAttempts = 5
)

// Storage is the idempotent write target keyed on (chain, tx_hash)
type Storage interface {
	Upsert(ctx context.Context, rec *models.WhaleRecord) error
}

// Counters are the in-memory sentiment tallies incremented per stored
// record. Read by the health endpoint and the sentiment aggregator.
type Counters struct {
	Stored     atomic.Int64
	Buys       atomic.Int64
	Sells      atomic.Int64
	Transfers  atomic.Int64
	DeadLetter atomic.Int64
}

// Sink writes classified records to storage with bounded retries. A record
// that exhausts its retries lands in the dead-letter queue instead of
// blocking the pipeline.
type Sink struct {
	storage    Storage
	deadLetter *DeadLetter
	audit      *AuditLog
	counters   Counters
}

// New creates a sink; deadLetter and audit may be nil
func New(storage Storage, deadLetter *DeadLetter, audit *AuditLog) *Sink {
	return &Sink{
		storage:    storage,
		deadLetter: deadLetter,
		audit:      audit,
	}
}

// Store upserts the record, retrying transient failures with exponential
// backoff. Returns an error only when the record was dead-lettered.
func (s *Sink) Store(ctx context.Context, rec *models.WhaleRecord) error {
	var lastErr error
	delay := retryBase

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = s.storage.Upsert(ctx, rec)
		if lastErr == nil {
			s.recordSuccess(rec)
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		logger.Warn("storage upsert failed, retrying",
			zap.String("tx_hash", rec.TxHash),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(lastErr),
		)

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = maxAttempts
		case <-time.After(delay):
		}

		delay *= retryFactor
		if delay > retryCap {
			delay = retryCap
		}
	}

	s.counters.DeadLetter.Add(1)
	if s.deadLetter != nil {
		if dlErr := s.deadLetter.Write(rec, lastErr); dlErr != nil {
			logger.Error("dead-letter write failed",
				zap.String("tx_hash", rec.TxHash),
				zap.Error(dlErr),
			)
		}
	}
	return fmt.Errorf("record %s dead-lettered after %d attempts: %w", rec.TxHash, maxAttempts, lastErr)
}

func (s *Sink) recordSuccess(rec *models.WhaleRecord) {
	s.counters.Stored.Add(1)
	switch {
	case rec.Classification.IsBuySide():
		s.counters.Buys.Add(1)
	case rec.Classification.IsSellSide():
		s.counters.Sells.Add(1)
	case rec.Classification == models.KindTransfer:
		s.counters.Transfers.Add(1)
	}

	if s.audit != nil {
		s.audit.RecordStored(rec)
	}

	logger.Debug("whale record stored",
		zap.String("chain", string(rec.Chain)),
		zap.String("tx_hash", rec.TxHash),
		zap.String("classification", string(rec.Classification)),
		zap.Float64("confidence", rec.Confidence),
		zap.String("usd_value", rec.USDValue.StringFixed(2)),
	)
}

// Stats returns a snapshot of the sentiment counters
func (s *Sink) Stats() map[string]int64 {
	return map[string]int64{
		"stored":      s.counters.Stored.Load(),
		"buys":        s.counters.Buys.Load(),
		"sells":       s.counters.Sells.Load(),
		"transfers":   s.counters.Transfers.Load(),
		"dead_letter": s.counters.DeadLetter.Load(),
	}
}
