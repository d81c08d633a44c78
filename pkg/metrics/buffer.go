package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/pkg/logger"
)

const flushTimeout = 5 * time.Second

// Buffer batches metrics per table and flushes them on a timer or when a
// table reaches the batch size. Writes to the analytical backend never
// block the hot path.
type Buffer struct {
	writer      Writer
	buffer      map[string][]Metric
	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	batchSize   int
	mu          sync.Mutex
}

// BufferConfig configures the metrics buffer
type BufferConfig struct {
	Writer        Writer
	BatchSize     int
	FlushInterval time.Duration
}

// NewBuffer creates the buffer and starts its flush loop
func NewBuffer(cfg BufferConfig) *Buffer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	b := &Buffer{
		writer:      cfg.Writer,
		buffer:      make(map[string][]Metric),
		batchSize:   cfg.BatchSize,
		flushTicker: time.NewTicker(cfg.FlushInterval),
		stopCh:      make(chan struct{}),
	}

	b.wg.Add(1)
	go b.autoFlush()

	logger.Info("metrics buffer initialized",
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("flush_interval", cfg.FlushInterval),
	)
	return b
}

// Add buffers one metric; a full table is flushed in the background
func (b *Buffer) Add(metric Metric) error {
	if metric == nil {
		return fmt.Errorf("metric is nil")
	}
	table := metric.TableName()
	if table == "" {
		return fmt.Errorf("metric table name is empty")
	}

	b.mu.Lock()
	b.buffer[table] = append(b.buffer[table], metric)
	full := len(b.buffer[table]) >= b.batchSize
	b.mu.Unlock()

	if full {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			if err := b.Flush(ctx); err != nil {
				logger.Warn("metrics batch flush failed", zap.Error(err))
			}
		}()
	}
	return nil
}

// Flush writes every buffered table to the writer
func (b *Buffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	toFlush := make(map[string][]Metric)
	for table, rows := range b.buffer {
		if len(rows) > 0 {
			toFlush[table] = rows
			b.buffer[table] = nil
		}
	}
	b.mu.Unlock()

	if len(toFlush) == 0 {
		return nil
	}

	failed := 0
	for table, rows := range toFlush {
		if err := b.writer.Write(ctx, table, rows); err != nil {
			logger.Error("failed to flush metrics",
				zap.String("table", table),
				zap.Int("count", len(rows)),
				zap.Error(err),
			)
			failed++
			continue
		}
		logger.Debug("metrics flushed",
			zap.String("table", table),
			zap.Int("count", len(rows)),
		)
	}

	if failed > 0 {
		return fmt.Errorf("flush failed for %d tables", failed)
	}
	return nil
}

// Size returns the buffered row count across all tables
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, rows := range b.buffer {
		total += len(rows)
	}
	return total
}

// Close stops the flush loop, drains the buffer and closes the writer
func (b *Buffer) Close(ctx context.Context) error {
	close(b.stopCh)
	b.flushTicker.Stop()
	b.wg.Wait()

	if err := b.Flush(ctx); err != nil {
		return err
	}
	if err := b.writer.Close(); err != nil {
		return err
	}

	logger.Info("✅ Metrics buffer closed")
	return nil
}

func (b *Buffer) autoFlush() {
	defer b.wg.Done()

	for {
		select {
		case <-b.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			if err := b.Flush(ctx); err != nil {
				logger.Warn("periodic metrics flush failed", zap.Error(err))
			}
			cancel()
		case <-b.stopCh:
			return
		}
	}
}
