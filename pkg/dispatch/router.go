package dispatch

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/thutasann/nano-pulse/metrics"
	"github.com/thutasann/nano-pulse/pkg/models"
	"github.com/thutasann/nano-pulse/pkg/signature"
	"github.com/thutasann/nano-pulse/pkg/types"
	"go.uber.org/zap"
)

// Router is the event-processing entry point: it validates an inbound event,
// resolves the matching active subscriptions and dispatches one delivery per
// subscription onto the transport its priority selects.
type Router struct {
	subs       SubscriptionStore
	deliveries DeliveryStore
	producer   DurablePublisher
	fast       FastQueue
	stats      StatsRecorder
	topics     Topics
	log        *zap.Logger
	workers    int
	now        func() time.Time
}

func NewRouter(
	subs SubscriptionStore,
	deliveries DeliveryStore,
	producer DurablePublisher,
	fast FastQueue,
	stats StatsRecorder,
	topics Topics,
	workers int,
	log *zap.Logger,
) *Router {
	if workers <= 0 {
		workers = 8
	}
	return &Router{
		subs:       subs,
		deliveries: deliveries,
		producer:   producer,
		fast:       fast,
		stats:      stats,
		topics:     topics,
		log:        log,
		workers:    workers,
		now:        time.Now,
	}
}

// route is where one delivery is headed, resolved once from the
// subscription's priority.
type route struct {
	fastPath bool
	topic    string
}

func (r *Router) routeFor(priority string) route {
	switch priority {
	case models.PriorityHigh:
		return route{fastPath: true}
	case models.PriorityMedium:
		return route{topic: r.topics.Medium}
	default:
		return route{topic: r.topics.Low}
	}
}

func (r *Router) enqueue(ctx context.Context, rt route, key, raw []byte) error {
	if rt.fastPath {
		return r.fast.Push(ctx, raw)
	}
	return r.producer.Publish(ctx, rt.topic, key, raw)
}

// ProcessEvent fans the event out to every matching active subscription.
// Each subscription is dispatched independently; a failure is logged and
// counted but never aborts the siblings. Zero matching subscriptions is a
// success with processed=0.
func (r *Router) ProcessEvent(ctx context.Context, event *types.WebhookEvent) (*types.ProcessResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	subs, err := r.subs.FindActiveByEventType(ctx, event.Type)
	if err != nil {
		return nil, err
	}
	metrics.WebhookEventsReceivedTotal.WithLabelValues(event.Type).Inc()
	r.log.Info("resolved subscriptions for event",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.Int("subscriptions", len(subs)),
	)

	result := &types.ProcessResult{EventID: event.ID}
	if len(subs) == 0 {
		return result, nil
	}

	var processed, failed atomic.Int64
	p := pool.New().WithMaxGoroutines(r.workers)
	for i := range subs {
		sub := subs[i]
		p.Go(func() {
			if err := r.dispatchOne(ctx, event, &sub); err != nil {
				failed.Add(1)
				metrics.WebhookFanoutTotal.WithLabelValues(sub.Priority, "failed").Inc()
				r.log.Error("failed to dispatch to subscription",
					zap.String("subscription_id", sub.ID.String()),
					zap.String("event_id", event.ID),
					zap.Error(err),
				)
				return
			}
			processed.Add(1)
			metrics.WebhookFanoutTotal.WithLabelValues(sub.Priority, "processed").Inc()
		})
	}
	p.Wait()

	result.Processed = int(processed.Load())
	result.Failed = int(failed.Load())
	return result, nil
}

// dispatchOne creates the delivery record, signs the payload, and routes the
// envelope to the transport the subscription's priority selects. The stats
// write is best-effort; it never fails the dispatch.
func (r *Router) dispatchOne(ctx context.Context, event *types.WebhookEvent, sub *models.WebhookSubscription) error {
	delivery := &models.WebhookDelivery{
		SubscriptionID: sub.ID,
		ClientID:       sub.ClientID,
		EventID:        event.ID,
		EventType:      event.Type,
		Payload:        event.Payload,
		Status:         models.StatusPending,
		AttemptCount:   0,
	}
	if err := r.deliveries.Create(ctx, delivery); err != nil {
		return err
	}

	sig := signature.Sign(event.Payload, sub.Secret)
	envelope := types.DeliveryEnvelope{
		DeliveryID:   delivery.ID.String(),
		Event:        *event,
		Subscription: subscriptionRef(sub),
		Signature:    sig,
		Timestamp:    r.now(),
		Attempts:     0,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	rt := r.routeFor(sub.Priority)
	if err := r.enqueue(ctx, rt, []byte(envelope.DeliveryID), raw); err != nil {
		return err
	}

	if err := r.stats.Record(ctx, sub.ID.String(), event.Type); err != nil {
		r.log.Error("failed to update realtime stats",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(err),
		)
	}
	return nil
}

func subscriptionRef(sub *models.WebhookSubscription) types.SubscriptionRef {
	return types.SubscriptionRef{
		ID:       sub.ID.String(),
		URL:      sub.URL,
		Secret:   sub.Secret,
		Priority: sub.Priority,
		Retry: types.RetryPolicy{
			MaxRetries:        sub.RetryConfig.MaxRetries,
			InitialDelayMs:    sub.RetryConfig.InitialDelayMs,
			MaxDelayMs:        sub.RetryConfig.MaxDelayMs,
			BackoffMultiplier: sub.RetryConfig.BackoffMultiplier,
		},
	}
}
