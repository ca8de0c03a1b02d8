package vigil

import (
	"testing"
	"time"
)

func TestCanExtend(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{
			name:     "active with quota",
			state:    State{Status: StatusActive, ExtensionsGranted: 0, MaxExtensions: 3},
			expected: true,
		},
		{
			name:     "warning with quota",
			state:    State{Status: StatusWarning, ExtensionsGranted: 2, MaxExtensions: 3},
			expected: true,
		},
		{
			name:     "final warning with quota",
			state:    State{Status: StatusFinalWarning, ExtensionsGranted: 0, MaxExtensions: 1},
			expected: true,
		},
		{
			name:     "quota exhausted",
			state:    State{Status: StatusActive, ExtensionsGranted: 3, MaxExtensions: 3},
			expected: false,
		},
		{
			name:     "expired",
			state:    State{Status: StatusExpired, ExtensionsGranted: 0, MaxExtensions: 3},
			expected: false,
		},
		{
			name:     "zero quota",
			state:    State{Status: StatusActive, ExtensionsGranted: 0, MaxExtensions: 0},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanExtend(tt.state); got != tt.expected {
				t.Errorf("CanExtend() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRemainingExtensions(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected int
	}{
		{
			name:     "full quota",
			state:    State{ExtensionsGranted: 0, MaxExtensions: 3},
			expected: 3,
		},
		{
			name:     "partially used",
			state:    State{ExtensionsGranted: 2, MaxExtensions: 3},
			expected: 1,
		},
		{
			name:     "exhausted",
			state:    State{ExtensionsGranted: 3, MaxExtensions: 3},
			expected: 0,
		},
		{
			name:     "over cap never negative",
			state:    State{ExtensionsGranted: 5, MaxExtensions: 3},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemainingExtensions(tt.state); got != tt.expected {
				t.Errorf("RemainingExtensions() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestNextDeadline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fallback := 30 * time.Minute

	tests := []struct {
		name     string
		d        time.Duration
		expected time.Time
	}{
		{
			name:     "explicit duration",
			d:        time.Minute,
			expected: now.Add(time.Minute),
		},
		{
			name:     "zero falls back to session duration",
			d:        0,
			expected: now.Add(fallback),
		},
		{
			name:     "negative falls back to session duration",
			d:        -time.Second,
			expected: now.Add(fallback),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextDeadline(now, tt.d, fallback); !got.Equal(tt.expected) {
				t.Errorf("NextDeadline() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatusForRemaining(t *testing.T) {
	warning := 30 * time.Second
	final := 10 * time.Second

	tests := []struct {
		name     string
		t        time.Duration
		expected Status
	}{
		{name: "well before warning", t: time.Minute, expected: StatusActive},
		{name: "just above warning", t: warning + time.Millisecond, expected: StatusActive},
		{name: "at warning threshold", t: warning, expected: StatusWarning},
		{name: "between thresholds", t: 20 * time.Second, expected: StatusWarning},
		{name: "at final threshold", t: final, expected: StatusFinalWarning},
		{name: "just before expiry", t: time.Millisecond, expected: StatusFinalWarning},
		{name: "at deadline", t: 0, expected: StatusExpired},
		{name: "past deadline", t: -time.Second, expected: StatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForRemaining(tt.t, warning, final); got != tt.expected {
				t.Errorf("statusForRemaining(%v) = %s, want %s", tt.t, got, tt.expected)
			}
		})
	}
}
