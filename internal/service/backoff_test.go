package service

import (
	"testing"
	"time"
)

func TestRetryDelaySchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		attemptNumber int
		want          time.Duration
	}{
		{name: "first attempt", attemptNumber: 1, want: 1 * time.Minute},
		{name: "second attempt", attemptNumber: 2, want: 5 * time.Minute},
		{name: "third attempt", attemptNumber: 3, want: 30 * time.Minute},
		{name: "fourth attempt", attemptNumber: 4, want: 2 * time.Hour},
		{name: "fifth attempt", attemptNumber: 5, want: 24 * time.Hour},
		{name: "beyond table clamps to last entry", attemptNumber: 9, want: 24 * time.Hour},
		{name: "zero clamps to first entry", attemptNumber: 0, want: 1 * time.Minute},
		{name: "negative clamps to first entry", attemptNumber: -3, want: 1 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := RetryDelay(tt.attemptNumber); got != tt.want {
				t.Fatalf("RetryDelay(%d) = %v, want %v", tt.attemptNumber, got, tt.want)
			}
		})
	}
}

func TestRetryDelayNonDecreasing(t *testing.T) {
	t.Parallel()

	previous := RetryDelay(1)
	for attempt := 2; attempt <= 8; attempt++ {
		current := RetryDelay(attempt)
		if current < previous {
			t.Fatalf("RetryDelay(%d) = %v, decreased from %v", attempt, current, previous)
		}
		previous = current
	}
}
