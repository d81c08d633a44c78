package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

// snapshotFile is the on-disk shape of a registry dump
type snapshotFile struct {
	SavedAt time.Time            `json:"saved_at"`
	Whales  []*models.WhaleStats `json:"whales"`
}

// SnapshotWorker periodically persists the registry to a JSON file. It
// implements the worker.Worker interface.
type SnapshotWorker struct {
	registry *Registry
	path     string
}

// NewSnapshotWorker creates the snapshot worker
func NewSnapshotWorker(registry *Registry, path string) *SnapshotWorker {
	return &SnapshotWorker{registry: registry, path: path}
}

// Name returns worker name for logging
func (w *SnapshotWorker) Name() string {
	return "registry-snapshot"
}

// Run writes one snapshot
func (w *SnapshotWorker) Run(_ context.Context) error {
	return w.registry.Snapshot(w.path)
}

// Snapshot atomically writes the registry to path
func (r *Registry) Snapshot(path string) error {
	entries := r.snapshotAll()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })

	data, err := json.Marshal(snapshotFile{
		SavedAt: time.Now().UTC(),
		Whales:  entries,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal registry snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	logger.Debug("whale registry snapshot written",
		zap.String("path", path),
		zap.Int("whales", len(entries)),
	)
	return nil
}

// Rehydrate loads a previous snapshot. A missing file is not an error:
// the registry simply starts cold.
func (r *Registry) Rehydrate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no registry snapshot found, starting cold",
				zap.String("path", path),
			)
			return nil
		}
		return fmt.Errorf("failed to read registry snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode registry snapshot: %w", err)
	}

	r.restore(snap.Whales)

	logger.Info("📥 Whale registry rehydrated",
		zap.String("path", path),
		zap.Int("whales", len(snap.Whales)),
		zap.Time("saved_at", snap.SavedAt),
	)
	return nil
}
