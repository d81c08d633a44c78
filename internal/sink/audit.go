package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

// AuditLog emits one JSON line per pipeline decision: stored records and
// near-duplicate suppressions. The file is the replayable audit trail.
type AuditLog struct {
	mu   sync.Mutex
	path string
}

// NewAuditLog creates the audit log at the given path
func NewAuditLog(path string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	return &AuditLog{path: path}, nil
}

type auditEvent struct {
	Timestamp   time.Time                `json:"timestamp"`
	Event       string                   `json:"event"`
	Record      *models.WhaleRecord      `json:"record,omitempty"`
	Suppression *models.SuppressionEvent `json:"suppression,omitempty"`
}

// RecordStored logs a successful upsert
func (a *AuditLog) RecordStored(rec *models.WhaleRecord) {
	a.append(auditEvent{
		Timestamp: time.Now().UTC(),
		Event:     "stored",
		Record:    rec,
	})
}

// RecordSuppression logs a near-duplicate decision
func (a *AuditLog) RecordSuppression(ev *models.SuppressionEvent) {
	a.append(auditEvent{
		Timestamp:   time.Now().UTC(),
		Event:       "suppressed",
		Suppression: ev,
	})
}

func (a *AuditLog) append(ev auditEvent) {
	line, err := json.Marshal(ev)
	if err != nil {
		logger.Error("failed to marshal audit event", zap.Error(err))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Error("failed to open audit log", zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		logger.Error("failed to append audit event", zap.Error(err))
	}
}
