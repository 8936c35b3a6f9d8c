package livefeed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayForAttempt(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 5000 * time.Millisecond},
		{attempt: 1, want: 7500 * time.Millisecond},
		{attempt: 2, want: 11250 * time.Millisecond},
		{attempt: 3, want: 16875 * time.Millisecond},
		{attempt: 4, want: 25312500 * time.Microsecond},
		{attempt: 5, want: 30 * time.Second}, // 37.9s capped
		{attempt: 8, want: 30 * time.Second},
		{attempt: 9, want: 30 * time.Second},
	}

	for _, tt := range tests {
		got := delayForAttempt(tt.attempt)
		assert.InDelta(t, tt.want, got, float64(time.Millisecond), "attempt %d", tt.attempt)
	}
}
