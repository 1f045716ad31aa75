package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/thutasann/nano-pulse/metrics"
	"github.com/thutasann/nano-pulse/pkg/models"
	"github.com/thutasann/nano-pulse/pkg/types"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MessageReader is the slice of the Kafka consumer the drain loop needs.
type MessageReader interface {
	ReadFromKafka(ctx context.Context) (*kafkago.Message, error)
	Close() error
}

// Consumer drains the fast queue and the durable topics concurrently and
// marks each referenced delivery record successful. The actual outbound HTTP
// call is the delivery sink's job, not the consumer's; this loop does queue
// draining and status bookkeeping only.
type Consumer struct {
	deliveries     DeliveryStore
	fast           FastQueue
	log            *zap.Logger
	tracer         trace.Tracer
	idleBackoff    time.Duration
	processTimeout time.Duration
}

func NewConsumer(deliveries DeliveryStore, fast FastQueue, tracer trace.Tracer, log *zap.Logger) *Consumer {
	return &Consumer{
		deliveries:     deliveries,
		fast:           fast,
		log:            log,
		tracer:         tracer,
		idleBackoff:    time.Second,
		processTimeout: 10 * time.Second,
	}
}

// SetIdleBackoff overrides the poller's sleep between empty pops.
func (c *Consumer) SetIdleBackoff(d time.Duration) {
	if d > 0 {
		c.idleBackoff = d
	}
}

// SetProcessTimeout overrides the per-envelope status update deadline.
func (c *Consumer) SetProcessTimeout(d time.Duration) {
	if d > 0 {
		c.processTimeout = d
	}
}

// Run starts every drain loop and blocks until ctx is cancelled and all
// loops have returned. One durable reader per topic; the fast queue gets a
// pub/sub listener plus a poller (the list is the source of truth — the
// poller guarantees delivery even when the published nudge was missed).
func (c *Consumer) Run(ctx context.Context, readers map[string]MessageReader) {
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		c.listenFastQueue(ctx)
	}()
	go func() {
		defer wg.Done()
		c.pollFastQueue(ctx)
	}()

	for topic, reader := range readers {
		wg.Add(1)
		go func(topic string, reader MessageReader) {
			defer wg.Done()
			c.consumeDurable(ctx, topic, reader)
		}(topic, reader)
	}

	wg.Wait()
}

// listenFastQueue handles the low-latency pub/sub nudges. Not exactly-once;
// processing is idempotent by delivery id so a duplicate with the poller is
// harmless.
func (c *Consumer) listenFastQueue(ctx context.Context) {
	ch, closeFn := c.fast.Subscribe(ctx)
	defer closeFn()

	c.log.Info("fast queue listener started")
	for {
		select {
		case <-ctx.Done():
			c.log.Info("fast queue listener stopped")
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			c.processEnvelope(ctx, "fast_pubsub", raw)
		}
	}
}

// pollFastQueue drains the list with a short idle backoff when empty.
func (c *Consumer) pollFastQueue(ctx context.Context) {
	c.log.Info("fast queue poller started", zap.Duration("idle_backoff", c.idleBackoff))
	for {
		select {
		case <-ctx.Done():
			c.log.Info("fast queue poller stopped")
			return
		default:
		}

		raw, err := c.fast.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("error popping fast queue", zap.Error(err))
			c.sleep(ctx, c.idleBackoff)
			continue
		}
		if raw == nil {
			if depth, err := c.fast.Depth(ctx); err == nil {
				metrics.FastQueueDepth.Set(float64(depth))
			}
			c.sleep(ctx, c.idleBackoff)
			continue
		}
		c.processEnvelope(ctx, "fast_poll", raw)
	}
}

// consumeDurable drains one Kafka topic in partition order. Offset commits
// are periodic, so a crash replays at most the uncommitted tail.
func (c *Consumer) consumeDurable(ctx context.Context, topic string, reader MessageReader) {
	defer reader.Close()

	c.log.Info("durable consumer started", zap.String("topic", topic))
	for {
		select {
		case <-ctx.Done():
			c.log.Info("durable consumer stopped", zap.String("topic", topic))
			return
		default:
		}

		m, err := reader.ReadFromKafka(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("error reading kafka message", zap.String("topic", topic), zap.Error(err))
			continue
		}
		c.processEnvelope(ctx, topic, m.Value)
	}
}

// processEnvelope marks the referenced delivery successful. Any failure is
// logged and swallowed — the loop must never die. A missed status update
// leaves the record for the retry scheduler (bounded staleness, not loss).
func (c *Consumer) processEnvelope(ctx context.Context, source string, raw []byte) {
	timer := prometheus.NewTimer(metrics.WebhookDeliveryProcessDuration.WithLabelValues(source))
	defer timer.ObserveDuration()

	spanCtx := ctx
	var span trace.Span
	if c.tracer != nil {
		spanCtx, span = c.tracer.Start(ctx, "process-delivery")
		defer span.End()
	}

	var envelope types.DeliveryEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues(source, "malformed").Inc()
		c.log.Error("failed to unmarshal delivery envelope",
			zap.String("source", source),
			zap.ByteString("raw", raw),
			zap.Error(err),
		)
		c.recordSpanError(span, err)
		return
	}

	deliveryID, err := uuid.Parse(envelope.DeliveryID)
	if err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues(source, "malformed").Inc()
		c.log.Error("envelope carries invalid delivery id",
			zap.String("delivery_id", envelope.DeliveryID),
			zap.Error(err),
		)
		c.recordSpanError(span, err)
		return
	}

	updateCtx, cancel := context.WithTimeout(spanCtx, c.processTimeout)
	defer cancel()
	if err := c.deliveries.UpdateStatus(updateCtx, deliveryID, models.StatusSuccess, nil); err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues(source, "update_failed").Inc()
		c.log.Error("failed to update delivery status",
			zap.String("delivery_id", envelope.DeliveryID),
			zap.String("source", source),
			zap.Error(err),
		)
		c.recordSpanError(span, err)
		return
	}

	metrics.WebhookDeliveriesTotal.WithLabelValues(source, models.StatusSuccess).Inc()
	c.log.Info("webhook delivered",
		zap.String("delivery_id", envelope.DeliveryID),
		zap.String("event_id", envelope.Event.ID),
		zap.String("source", source),
	)
}

func (c *Consumer) recordSpanError(span trace.Span, err error) {
	if span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
