package stats

import (
	"testing"
	"time"
)

func TestRatePerMinute(t *testing.T) {
	cases := []struct {
		name   string
		count  int64
		window time.Duration
		want   float64
	}{
		{"ten over five minutes", 10, 5 * time.Minute, 2},
		{"zero count", 0, 5 * time.Minute, 0},
		{"one minute window", 7, time.Minute, 7},
		{"zero window", 5, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RatePerMinute(tc.count, tc.window)
			if got != tc.want {
				t.Errorf("RatePerMinute(%d, %v) = %v, want %v", tc.count, tc.window, got, tc.want)
			}
		})
	}
}
