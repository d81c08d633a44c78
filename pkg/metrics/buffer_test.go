package metrics

import (
	"context"
	"sync"
	"testing"
	"time"
)

type capturingWriter struct {
	mu     sync.Mutex
	tables map[string]int
	closed bool
}

func newCapturingWriter() *capturingWriter {
	return &capturingWriter{tables: make(map[string]int)}
}

func (w *capturingWriter) Write(_ context.Context, tableName string, rows []Metric) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tables[tableName] += len(rows)
	return nil
}

func (w *capturingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *capturingWriter) count(table string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tables[table]
}

func TestBuffer_FlushGroupsByTable(t *testing.T) {
	writer := newCapturingWriter()
	buf := NewBuffer(BufferConfig{Writer: writer, BatchSize: 100, FlushInterval: time.Hour})

	for i := 0; i < 3; i++ {
		if err := buf.Add(&TransferHistoryMetric{Chain: "ethereum", TxHash: "0x1"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := buf.Add(&PipelineTickMetric{Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}

	if buf.Size() != 4 {
		t.Errorf("Expected 4 buffered rows, got %d", buf.Size())
	}

	if err := buf.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if writer.count("transfer_history") != 3 || writer.count("pipeline_ticks") != 1 {
		t.Errorf("Rows not grouped by table: %v", writer.tables)
	}
	if buf.Size() != 0 {
		t.Errorf("Buffer not cleared after flush, size %d", buf.Size())
	}

	if err := buf.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !writer.closed {
		t.Error("Close must close the writer")
	}
}

func TestBuffer_BatchSizeTriggersFlush(t *testing.T) {
	writer := newCapturingWriter()
	buf := NewBuffer(BufferConfig{Writer: writer, BatchSize: 2, FlushInterval: time.Hour})

	for i := 0; i < 2; i++ {
		if err := buf.Add(&TransferHistoryMetric{Chain: "ethereum"}); err != nil {
			t.Fatal(err)
		}
	}

	// The batch flush runs in the background
	deadline := time.After(time.Second)
	for writer.count("transfer_history") < 2 {
		select {
		case <-deadline:
			t.Fatalf("Batch never flushed, wrote %d rows", writer.count("transfer_history"))
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := buf.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestBuffer_RejectsNilMetric(t *testing.T) {
	buf := NewBuffer(BufferConfig{Writer: newCapturingWriter()})
	defer buf.Close(context.Background())

	if err := buf.Add(nil); err == nil {
		t.Error("Nil metric must be rejected")
	}
}
