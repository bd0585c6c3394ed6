package session

import (
	"testing"
	"time"
)

func TestReconnectStateSequence(t *testing.T) {
	s := ReconnectState{Backoff: DefaultBackoff()}
	want := []time.Duration{
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for i, w := range want {
		if got := s.Next(); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}
	if s.Attempts != len(want) {
		t.Errorf("expected %d attempts, got %d", len(want), s.Attempts)
	}

	s.Reset()
	if s.Attempts != 0 {
		t.Fatalf("expected attempts reset to 0, got %d", s.Attempts)
	}
	if got := s.Next(); got != 4*time.Second {
		t.Errorf("expected 4s after reset, got %v", got)
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: time.Second}
	tests := []struct {
		n    int
		want time.Duration
	}{
		{-1, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{63, time.Second},
		{1 << 40, time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.n); got != tt.want {
			t.Errorf("Delay(%d): expected %v, got %v", tt.n, tt.want, got)
		}
	}
}

func TestBackoffDelayNeverOverflows(t *testing.T) {
	b := Backoff{Base: time.Hour, Max: 1 << 62}
	for n := 0; n < 200; n++ {
		if d := b.Delay(n); d <= 0 || d > b.Max {
			t.Fatalf("Delay(%d) out of range: %v", n, d)
		}
	}
}

func TestBackoffZeroValueUsesDefaults(t *testing.T) {
	var b Backoff
	if got := b.Delay(1); got != 4*time.Second {
		t.Errorf("expected 4s, got %v", got)
	}
	if got := b.Delay(10); got != 60*time.Second {
		t.Errorf("expected 60s cap, got %v", got)
	}
}
