package dispatch

import (
	"testing"
	"time"

	"github.com/thutasann/nano-pulse/pkg/models"
)

func TestBackoffMonotonicAndBounded(t *testing.T) {
	cfg := models.RetryConfig{
		MaxRetries:        5,
		InitialDelayMs:    1000,
		MaxDelayMs:        32000,
		BackoffMultiplier: 2,
	}

	want := []time.Duration{
		1000 * time.Millisecond,  // attempt 0
		2000 * time.Millisecond,  // attempt 1
		4000 * time.Millisecond,  // attempt 2
		8000 * time.Millisecond,  // attempt 3
		16000 * time.Millisecond, // attempt 4
		32000 * time.Millisecond, // attempt 5 (capped)
		32000 * time.Millisecond, // attempt 6 (capped)
		32000 * time.Millisecond, // attempt 7 (capped)
		32000 * time.Millisecond, // attempt 8 (capped)
	}

	prev := time.Duration(0)
	for attempt, expected := range want {
		got := Backoff(cfg, attempt)
		if got != expected {
			t.Errorf("Backoff(attempt=%d) = %v, want %v", attempt, got, expected)
		}
		if got < prev {
			t.Errorf("Backoff(attempt=%d) = %v decreased from %v", attempt, got, prev)
		}
		if got > 32000*time.Millisecond {
			t.Errorf("Backoff(attempt=%d) = %v exceeds maxDelay", attempt, got)
		}
		prev = got
	}
}

func TestBackoffMultiplierOne(t *testing.T) {
	cfg := models.RetryConfig{
		InitialDelayMs:    500,
		MaxDelayMs:        60000,
		BackoffMultiplier: 1,
	}
	for attempt := 0; attempt < 5; attempt++ {
		if got := Backoff(cfg, attempt); got != 500*time.Millisecond {
			t.Errorf("Backoff(attempt=%d) = %v, want 500ms with multiplier 1", attempt, got)
		}
	}
}

func TestBackoffNegativeAttemptClamped(t *testing.T) {
	cfg := models.RetryConfig{
		InitialDelayMs:    1000,
		MaxDelayMs:        32000,
		BackoffMultiplier: 2,
	}
	if got := Backoff(cfg, -3); got != 1000*time.Millisecond {
		t.Errorf("Backoff(attempt=-3) = %v, want 1000ms", got)
	}
}
