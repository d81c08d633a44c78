package metrics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/internal/pipeline"
	"github.com/selivandex/whale-monitor/internal/sink"
	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/metrics"
	"github.com/selivandex/whale-monitor/pkg/models"
)

// HistoryStorage decorates the primary storage and mirrors every stored
// record into the buffered transfer_history metric. The mirror feeds the
// mega-whale volume queries; a failed mirror never fails the write.
type HistoryStorage struct {
	next sink.Storage
	buf  *metrics.Buffer
}

// NewHistoryStorage wraps the storage with the history mirror
func NewHistoryStorage(next sink.Storage, buf *metrics.Buffer) *HistoryStorage {
	return &HistoryStorage{next: next, buf: buf}
}

// Upsert writes through to the primary storage, then buffers the history row
func (h *HistoryStorage) Upsert(ctx context.Context, rec *models.WhaleRecord) error {
	if err := h.next.Upsert(ctx, rec); err != nil {
		return err
	}

	err := h.buf.Add(&metrics.TransferHistoryMetric{
		Chain:       string(rec.Chain),
		TxHash:      rec.TxHash,
		BlockTime:   rec.BlockTime,
		FromAddr:    rec.WhaleAddress,
		ToAddr:      rec.CounterpartyAddress,
		TokenSymbol: rec.TokenSymbol,
		USDValue:    models.ToFloat64(rec.USDValue),
	})
	if err != nil {
		logger.Warn("failed to buffer transfer history",
			zap.String("tx_hash", rec.TxHash),
			zap.Error(err),
		)
	}
	return nil
}

// TickWorker snapshots the pipeline counters into the pipeline_ticks table
type TickWorker struct {
	counters *pipeline.Counters
	buf      *metrics.Buffer
}

// NewTickWorker creates the counter snapshot worker
func NewTickWorker(counters *pipeline.Counters, buf *metrics.Buffer) *TickWorker {
	return &TickWorker{counters: counters, buf: buf}
}

// Name identifies the worker in logs
func (w *TickWorker) Name() string {
	return "pipeline-metrics"
}

// Run buffers one counter snapshot
func (w *TickWorker) Run(_ context.Context) error {
	snap := w.counters.Snapshot()
	return w.buf.Add(&metrics.PipelineTickMetric{
		Timestamp:  time.Now().UTC(),
		Received:   snap["received"],
		Duplicates: snap["duplicates"],
		Enriched:   snap["enriched"],
		Classified: snap["classified"],
		Skipped:    snap["skipped"],
		Suppressed: snap["suppressed"],
		Stored:     snap["stored"],
		Errors:     snap["errors"],
	})
}
