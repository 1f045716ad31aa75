package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	retention  = 24 * time.Hour
	rateWindow = 5 * time.Minute
)

// RealtimeStats is the read model for one subscription's rolling counters.
type RealtimeStats struct {
	TotalEvents     int64            `json:"totalEvents"`
	EventTypeCounts map[string]int64 `json:"eventTypeCounts"`
	EventsPerMinute float64          `json:"eventsPerMinute"`
}

// Aggregator maintains per-subscription rolling counters in Redis. A cache,
// not a system of record: everything expires after 24h and is safe to lose.
type Aggregator struct {
	rdb *redis.Client
	now func() time.Time
}

func NewAggregator(rdb *redis.Client) *Aggregator {
	return &Aggregator{rdb: rdb, now: time.Now}
}

func statsKey(subscriptionID string) string {
	return fmt.Sprintf("stats:webhook:%s", subscriptionID)
}

// Record bumps the total counter, the per-type counter and the timeline in a
// single pipelined batch, refreshing the 24h expiry on the aggregate. The
// batch keeps counters and timeline consistent with each other; concurrent
// batches for the same subscription race benignly (counts are eventually
// consistent, never partially applied within a batch).
func (a *Aggregator) Record(ctx context.Context, subscriptionID, eventType string) error {
	key := statsKey(subscriptionID)
	timelineKey := key + ":timeline"
	now := a.now().UnixMilli()

	pipe := a.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, "total_events", 1)
	pipe.HIncrBy(ctx, key, "event_type:"+eventType, 1)
	pipe.ZAdd(ctx, timelineKey, redis.Z{Score: float64(now), Member: strconv.FormatInt(now, 10)})
	pipe.Expire(ctx, key, retention)
	pipe.Expire(ctx, timelineKey, retention)
	_, err := pipe.Exec(ctx)
	return err
}

// Read returns totals, the per-type breakdown and the events-per-minute rate
// over the trailing five minute window.
func (a *Aggregator) Read(ctx context.Context, subscriptionID string) (*RealtimeStats, error) {
	key := statsKey(subscriptionID)
	timelineKey := key + ":timeline"
	now := a.now()

	fields, err := a.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	windowStart := now.Add(-rateWindow).UnixMilli()
	inWindow, err := a.rdb.ZCount(ctx, timelineKey,
		strconv.FormatInt(windowStart, 10),
		strconv.FormatInt(now.UnixMilli(), 10),
	).Result()
	if err != nil {
		return nil, err
	}

	out := &RealtimeStats{
		EventTypeCounts: make(map[string]int64),
		EventsPerMinute: RatePerMinute(inWindow, rateWindow),
	}
	for field, raw := range fields {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if field == "total_events" {
			out.TotalEvents = n
			continue
		}
		if eventType, ok := strings.CutPrefix(field, "event_type:"); ok {
			out.EventTypeCounts[eventType] = n
		}
	}
	return out, nil
}

// RatePerMinute converts a count over a window into an events/minute figure.
func RatePerMinute(count int64, window time.Duration) float64 {
	minutes := window.Minutes()
	if minutes <= 0 {
		return 0
	}
	return float64(count) / minutes
}
