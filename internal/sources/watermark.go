package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Watermark is the per-source resume point persisted across restarts
type Watermark struct {
	LastTime  time.Time `json:"last_time"`
	LastBlock int64     `json:"last_block"`
}

// WatermarkStore persists source high-watermarks as a JSON map keyed by
// source ID. Writes are atomic via rename.
type WatermarkStore struct {
	mu    sync.Mutex
	path  string
	marks map[string]Watermark
}

// NewWatermarkStore loads the store from path; a missing file starts empty
func NewWatermarkStore(path string) (*WatermarkStore, error) {
	s := &WatermarkStore{
		path:  path,
		marks: make(map[string]Watermark),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read watermarks: %w", err)
	}
	if err := json.Unmarshal(data, &s.marks); err != nil {
		return nil, fmt.Errorf("failed to decode watermarks: %w", err)
	}
	return s, nil
}

// Get returns the watermark for a source ID
func (s *WatermarkStore) Get(sourceID string) (Watermark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.marks[sourceID]
	return w, ok
}

// Set updates the watermark and persists the full map
func (s *WatermarkStore) Set(sourceID string, w Watermark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.marks[sourceID] = w

	data, err := json.MarshalIndent(s.marks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal watermarks: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create watermark directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write watermarks: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace watermarks: %w", err)
	}
	return nil
}
