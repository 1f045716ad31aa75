package dispatch

import (
	"math"
	"time"

	"github.com/thutasann/nano-pulse/pkg/models"
)

// Backoff computes the retry delay for a delivery that has already been
// attempted `attempt` times: min(initialDelay * multiplier^attempt, maxDelay).
// Non-decreasing in attempt and capped at the subscription's maxDelay.
func Backoff(cfg models.RetryConfig, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(cfg.InitialDelayMs) * math.Pow(cfg.BackoffMultiplier, float64(attempt))
	if ceiling := float64(cfg.MaxDelayMs); delay > ceiling {
		delay = ceiling
	}
	return time.Duration(delay) * time.Millisecond
}
