package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thutasann/nano-pulse/pkg/models"
	"github.com/thutasann/nano-pulse/pkg/stats"
)

// SubscriptionStore resolves subscriptions for fan-out and retry.
type SubscriptionStore interface {
	FindActiveByEventType(ctx context.Context, eventType string) ([]models.WebhookSubscription, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error)
}

// DeliveryStore is the single source of truth for delivery lifecycle state.
type DeliveryStore interface {
	Create(ctx context.Context, delivery *models.WebhookDelivery) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookDelivery, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, fields map[string]any) error
	FindFailedRetryable(ctx context.Context, limit int, now time.Time) ([]models.WebhookDelivery, error)
	Analytics(ctx context.Context, subscriptionID uuid.UUID) (*models.DeliveryAnalytics, error)
	Recent(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]models.WebhookDelivery, error)
}

// DurablePublisher appends envelopes to a partitioned, replayable log topic.
type DurablePublisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// FastQueue is the in-memory-style low latency path for HIGH priority
// traffic: a list that is the source of truth plus a pub/sub wake-up.
type FastQueue interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context) ([]byte, error)
	Subscribe(ctx context.Context) (<-chan []byte, func() error)
	Depth(ctx context.Context) (int64, error)
}

// StatsRecorder maintains the per-subscription rolling counters written on
// the dispatch hot path.
type StatsRecorder interface {
	Record(ctx context.Context, subscriptionID, eventType string) error
	Read(ctx context.Context, subscriptionID string) (*stats.RealtimeStats, error)
}

// Topics names the durable queue topics per traffic class.
type Topics struct {
	Medium string
	Low    string
	Retry  string
}
