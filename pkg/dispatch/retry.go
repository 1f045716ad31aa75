package dispatch

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/thutasann/nano-pulse/metrics"
	"github.com/thutasann/nano-pulse/pkg/models"
	"github.com/thutasann/nano-pulse/pkg/signature"
	"github.com/thutasann/nano-pulse/pkg/types"
	"go.uber.org/zap"
)

const maxRetriesExceeded = "Max retries exceeded"

// RetryDelivery re-queues a delivery on explicit request. The backoff delay
// is computed from the attempt count as stored (pre-increment); the count is
// then incremented and nextRetryAt set before the envelope lands on the
// retry topic. At the bound, the delivery is forced to terminal failed and
// nothing is scheduled.
func (r *Router) RetryDelivery(ctx context.Context, deliveryID uuid.UUID) (*types.RetryResult, error) {
	delivery, err := r.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	sub, err := r.subs.FindByID(ctx, delivery.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive {
		return nil, types.ErrSubscriptionInactive
	}

	if delivery.AttemptCount >= sub.RetryConfig.MaxRetries {
		if err := r.deliveries.UpdateStatus(ctx, delivery.ID, models.StatusFailed, map[string]any{
			"error":         maxRetriesExceeded,
			"next_retry_at": nil,
		}); err != nil {
			return nil, err
		}
		metrics.WebhookRetriesExhaustedTotal.Inc()
		return &types.RetryResult{Status: models.StatusFailed, Reason: maxRetriesExceeded}, nil
	}

	delay := Backoff(sub.RetryConfig, delivery.AttemptCount)
	nextAttempt := r.now().Add(delay)
	attempts := delivery.AttemptCount + 1

	if err := r.deliveries.UpdateStatus(ctx, delivery.ID, models.StatusPending, map[string]any{
		"attempt_count": attempts,
		"next_retry_at": nextAttempt,
	}); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(r.retryEnvelope(delivery, sub, attempts))
	if err != nil {
		return nil, err
	}
	if err := r.producer.Publish(ctx, r.topics.Retry, []byte(delivery.ID.String()), raw); err != nil {
		return nil, err
	}

	metrics.WebhookRetriesScheduledTotal.WithLabelValues("manual").Inc()
	r.log.Info("delivery requeued for retry",
		zap.String("delivery_id", delivery.ID.String()),
		zap.Int("attempt_count", attempts),
		zap.Time("next_attempt", nextAttempt),
	)
	return &types.RetryResult{
		Status:       "requeued",
		NextAttempt:  &nextAttempt,
		AttemptCount: attempts,
	}, nil
}

// retryEnvelope rebuilds a queue envelope from the stored delivery snapshot.
func (r *Router) retryEnvelope(delivery *models.WebhookDelivery, sub *models.WebhookSubscription, attempts int) types.DeliveryEnvelope {
	return types.DeliveryEnvelope{
		DeliveryID: delivery.ID.String(),
		Event: types.WebhookEvent{
			ID:      delivery.EventID,
			Type:    delivery.EventType,
			Payload: delivery.Payload,
		},
		Subscription: subscriptionRef(sub),
		Signature:    signature.Sign(delivery.Payload, sub.Secret),
		Timestamp:    r.now(),
		Attempts:     attempts,
	}
}
