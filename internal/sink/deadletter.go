package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/selivandex/whale-monitor/pkg/models"
)

// DeadLetter appends permanently failed records to a line-delimited JSON
// file so they can be replayed after the outage
type DeadLetter struct {
	mu   sync.Mutex
	path string
}

// NewDeadLetter creates the dead-letter queue at the given path
func NewDeadLetter(path string) (*DeadLetter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dead-letter directory: %w", err)
	}
	return &DeadLetter{path: path}, nil
}

type deadLetterEntry struct {
	FailedAt time.Time           `json:"failed_at"`
	Error    string              `json:"error"`
	Record   *models.WhaleRecord `json:"record"`
}

// Write appends the record with its final error
func (d *DeadLetter) Write(rec *models.WhaleRecord, cause error) error {
	entry := deadLetterEntry{
		FailedAt: time.Now().UTC(),
		Record:   rec,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter entry: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open dead-letter file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append dead-letter entry: %w", err)
	}
	return nil
}
