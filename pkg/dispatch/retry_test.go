package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/thutasann/nano-pulse/pkg/models"
	"github.com/thutasann/nano-pulse/pkg/types"
)

func seedDelivery(f *routerFixture, sub models.WebhookSubscription, attemptCount int) *models.WebhookDelivery {
	d := &models.WebhookDelivery{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		ClientID:       sub.ClientID,
		EventID:        "evt_1",
		EventType:      "order.updated",
		Payload:        json.RawMessage(`{"orderId":"ord_1"}`),
		Status:         models.StatusFailed,
		AttemptCount:   attemptCount,
	}
	f.deliveries.byID[d.ID] = d
	return d
}

func TestRetryDeliveryRequeues(t *testing.T) {
	sub := testSubscription(models.PriorityMedium, "order.updated")
	f := newRouterFixture(sub)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f.router.now = func() time.Time { return now }

	delivery := seedDelivery(f, sub, 0)

	result, err := f.router.RetryDelivery(context.Background(), delivery.ID)
	if err != nil {
		t.Fatalf("RetryDelivery returned error: %v", err)
	}
	if result.Status != "requeued" {
		t.Errorf("expected status requeued, got %s", result.Status)
	}
	if result.AttemptCount != 1 {
		t.Errorf("expected attemptCount 1, got %d", result.AttemptCount)
	}
	// delay uses the pre-increment attempt count: 1000 * 2^0 = 1000ms
	wantNext := now.Add(1000 * time.Millisecond)
	if result.NextAttempt == nil || !result.NextAttempt.Equal(wantNext) {
		t.Errorf("expected nextAttempt %v, got %v", wantNext, result.NextAttempt)
	}

	if len(f.deliveries.updates) != 1 {
		t.Fatalf("expected 1 status update, got %d", len(f.deliveries.updates))
	}
	update := f.deliveries.updates[0]
	if update.status != models.StatusPending {
		t.Errorf("expected status pending, got %s", update.status)
	}
	if update.fields["attempt_count"] != 1 {
		t.Errorf("expected attempt_count 1, got %v", update.fields["attempt_count"])
	}

	msgs := f.producer.byTopic(testTopics.Retry)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 retry topic message, got %d", len(msgs))
	}
	var envelope types.DeliveryEnvelope
	if err := json.Unmarshal(msgs[0].value, &envelope); err != nil {
		t.Fatalf("failed to unmarshal retry envelope: %v", err)
	}
	if envelope.DeliveryID != delivery.ID.String() {
		t.Errorf("retry envelope carries wrong delivery id: %s", envelope.DeliveryID)
	}
	if envelope.Attempts != 1 {
		t.Errorf("expected envelope attempts 1, got %d", envelope.Attempts)
	}
	if envelope.Signature == "" {
		t.Error("retry envelope must be re-signed")
	}
}

func TestRetryDeliveryExhaustionIsTerminal(t *testing.T) {
	sub := testSubscription(models.PriorityMedium, "order.updated")
	f := newRouterFixture(sub)

	delivery := seedDelivery(f, sub, sub.RetryConfig.MaxRetries)

	result, err := f.router.RetryDelivery(context.Background(), delivery.ID)
	if err != nil {
		t.Fatalf("RetryDelivery returned error: %v", err)
	}
	if result.Status != models.StatusFailed {
		t.Errorf("expected terminal failed status, got %s", result.Status)
	}
	if result.Reason != "Max retries exceeded" {
		t.Errorf("expected reason 'Max retries exceeded', got %q", result.Reason)
	}

	if len(f.deliveries.updates) != 1 {
		t.Fatalf("expected 1 status update, got %d", len(f.deliveries.updates))
	}
	update := f.deliveries.updates[0]
	if update.status != models.StatusFailed {
		t.Errorf("expected status failed, got %s", update.status)
	}
	if update.fields["error"] != "Max retries exceeded" {
		t.Errorf("expected error field set, got %v", update.fields["error"])
	}
	if v, ok := update.fields["next_retry_at"]; !ok || v != nil {
		t.Errorf("expected next_retry_at cleared, got %v", v)
	}
	if len(f.producer.byTopic(testTopics.Retry)) != 0 {
		t.Error("exhausted delivery must not be re-enqueued")
	}
}

func TestRetryDeliveryNotFound(t *testing.T) {
	f := newRouterFixture(testSubscription(models.PriorityMedium, "order.updated"))

	_, err := f.router.RetryDelivery(context.Background(), uuid.New())
	if !errors.Is(err, types.ErrDeliveryNotFound) {
		t.Errorf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestRetryDeliveryInactiveSubscription(t *testing.T) {
	sub := testSubscription(models.PriorityMedium, "order.updated")
	sub.IsActive = false
	f := newRouterFixture(sub)

	delivery := seedDelivery(f, sub, 0)

	_, err := f.router.RetryDelivery(context.Background(), delivery.ID)
	if !errors.Is(err, types.ErrSubscriptionInactive) {
		t.Errorf("expected ErrSubscriptionInactive, got %v", err)
	}
	if len(f.producer.byTopic(testTopics.Retry)) != 0 {
		t.Error("inactive subscription must not be re-enqueued")
	}
}
