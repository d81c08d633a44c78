package config

import (
	"testing"
	"time"
)

func TestSeconds_Decode(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"3600", time.Hour, false},
		{"120", 2 * time.Minute, false},
		{"0", 0, false},
		{"90s", 90 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{"ninety", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var s Seconds
			err := s.Decode(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected decode error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode(%q) failed: %v", tt.in, err)
			}
			if s.Duration() != tt.want {
				t.Errorf("Decode(%q) = %s, want %s", tt.in, s.Duration(), tt.want)
			}
		})
	}
}
