package dispatch

import (
	"context"

	"github.com/google/uuid"
	"github.com/thutasann/nano-pulse/pkg/models"
	"github.com/thutasann/nano-pulse/pkg/stats"
	"go.uber.org/zap"
)

// WebhookStats merges the persistent delivery analytics with the rolling
// realtime counters for one subscription.
type WebhookStats struct {
	Delivery *models.DeliveryAnalytics `json:"delivery"`
	Realtime *stats.RealtimeStats      `json:"realtime"`
}

// GetStats returns merged stats for a subscription. The realtime aggregate
// is a cache; if it cannot be read the persistent analytics still come back.
func (r *Router) GetStats(ctx context.Context, subscriptionID uuid.UUID) (*WebhookStats, error) {
	if _, err := r.subs.FindByID(ctx, subscriptionID); err != nil {
		return nil, err
	}

	analytics, err := r.deliveries.Analytics(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	realtime, err := r.stats.Read(ctx, subscriptionID.String())
	if err != nil {
		r.log.Error("failed to read realtime stats",
			zap.String("subscription_id", subscriptionID.String()),
			zap.Error(err),
		)
		realtime = nil
	}

	return &WebhookStats{Delivery: analytics, Realtime: realtime}, nil
}

// RecentDeliveries lists the latest deliveries for a subscription.
func (r *Router) RecentDeliveries(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]models.WebhookDelivery, error) {
	if _, err := r.subs.FindByID(ctx, subscriptionID); err != nil {
		return nil, err
	}
	return r.deliveries.Recent(ctx, subscriptionID, limit)
}
