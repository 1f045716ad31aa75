package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/thutasann/nano-pulse/metrics"
	"github.com/thutasann/nano-pulse/pkg/models"
	"github.com/thutasann/nano-pulse/pkg/signature"
	"github.com/thutasann/nano-pulse/pkg/types"
	"go.uber.org/zap"
)

// RetryScheduler periodically scans for failed deliveries that are due and
// re-enqueues them onto the retry topic, bounded by each owning
// subscription's retryConfig. A bad cycle is logged and swallowed so the
// next cycle always runs.
type RetryScheduler struct {
	deliveries DeliveryStore
	subs       SubscriptionStore
	producer   DurablePublisher
	retryTopic string
	interval   time.Duration
	batchSize  int
	log        *zap.Logger
	now        func() time.Time
}

func NewRetryScheduler(
	deliveries DeliveryStore,
	subs SubscriptionStore,
	producer DurablePublisher,
	retryTopic string,
	interval time.Duration,
	batchSize int,
	log *zap.Logger,
) *RetryScheduler {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &RetryScheduler{
		deliveries: deliveries,
		subs:       subs,
		producer:   producer,
		retryTopic: retryTopic,
		interval:   interval,
		batchSize:  batchSize,
		log:        log,
		now:        time.Now,
	}
}

// Start blocks until ctx is cancelled, running one scan per interval.
func (s *RetryScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("retry scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
	)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("retry scheduler stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.log.Error("retry scan failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single scan. Candidates whose subscription is gone or
// inactive are dropped; candidates at their subscription's retry bound are
// forced to terminal failed; the rest are re-enqueued with backoff.
func (s *RetryScheduler) RunOnce(ctx context.Context) error {
	now := s.now()
	candidates, err := s.deliveries.FindFailedRetryable(ctx, s.batchSize, now)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	for i := range candidates {
		delivery := &candidates[i]
		if err := s.requeue(ctx, delivery, now); err != nil {
			s.log.Error("failed to requeue delivery",
				zap.String("delivery_id", delivery.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *RetryScheduler) requeue(ctx context.Context, delivery *models.WebhookDelivery, now time.Time) error {
	sub, err := s.subs.FindByID(ctx, delivery.SubscriptionID)
	if err != nil || !sub.IsActive {
		// Owner gone or deactivated: no further retries for this delivery.
		s.log.Debug("dropping retry candidate without active subscription",
			zap.String("delivery_id", delivery.ID.String()),
		)
		return nil
	}

	if delivery.AttemptCount >= sub.RetryConfig.MaxRetries {
		metrics.WebhookRetriesExhaustedTotal.Inc()
		return s.deliveries.UpdateStatus(ctx, delivery.ID, models.StatusFailed, map[string]any{
			"error":         maxRetriesExceeded,
			"next_retry_at": nil,
		})
	}

	delay := Backoff(sub.RetryConfig, delivery.AttemptCount)
	attempts := delivery.AttemptCount + 1
	nextRetryAt := now.Add(delay)

	if err := s.deliveries.UpdateStatus(ctx, delivery.ID, models.StatusRetry, map[string]any{
		"attempt_count": attempts,
		"next_retry_at": nextRetryAt,
	}); err != nil {
		return err
	}

	envelope := types.DeliveryEnvelope{
		DeliveryID: delivery.ID.String(),
		Event: types.WebhookEvent{
			ID:      delivery.EventID,
			Type:    delivery.EventType,
			Payload: delivery.Payload,
		},
		Subscription: subscriptionRef(sub),
		Signature:    signature.Sign(delivery.Payload, sub.Secret),
		Timestamp:    now,
		Attempts:     attempts,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	if err := s.producer.Publish(ctx, s.retryTopic, []byte(envelope.DeliveryID), raw); err != nil {
		return err
	}

	// Re-enqueued: the consumer owns it again from here.
	if err := s.deliveries.UpdateStatus(ctx, delivery.ID, models.StatusPending, nil); err != nil {
		return err
	}
	metrics.WebhookRetriesScheduledTotal.WithLabelValues("scheduled").Inc()
	return nil
}
