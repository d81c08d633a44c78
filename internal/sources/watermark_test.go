package sources

import (
	"path/filepath"
	"testing"
	"time"
)

func TestWatermarkStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermarks.json")

	s, err := NewWatermarkStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if _, ok := s.Get("whale-alert"); ok {
		t.Fatal("Fresh store must have no watermarks")
	}

	mark := Watermark{
		LastTime:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		LastBlock: 19_000_000,
	}
	if err := s.Set("whale-alert", mark); err != nil {
		t.Fatalf("Failed to set watermark: %v", err)
	}

	// A new store instance reads the persisted file
	reloaded, err := NewWatermarkStore(path)
	if err != nil {
		t.Fatalf("Failed to reload store: %v", err)
	}

	got, ok := reloaded.Get("whale-alert")
	if !ok {
		t.Fatal("Watermark lost across restart")
	}
	if !got.LastTime.Equal(mark.LastTime) || got.LastBlock != mark.LastBlock {
		t.Errorf("Expected %+v, got %+v", mark, got)
	}
}

func TestWatermarkStore_IndependentSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermarks.json")
	s, err := NewWatermarkStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := s.Set("etherscan-poller/USDT", Watermark{LastBlock: 100}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("etherscan-poller/WETH", Watermark{LastBlock: 200}); err != nil {
		t.Fatal(err)
	}

	usdt, _ := s.Get("etherscan-poller/USDT")
	weth, _ := s.Get("etherscan-poller/WETH")
	if usdt.LastBlock != 100 || weth.LastBlock != 200 {
		t.Errorf("Watermarks must not share state: %d, %d", usdt.LastBlock, weth.LastBlock)
	}
}
