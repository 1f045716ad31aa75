package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/thutasann/nano-pulse/pkg/models"
	"github.com/thutasann/nano-pulse/pkg/types"
	"go.uber.org/zap"
)

func newSchedulerFixture(subs ...models.WebhookSubscription) (*RetryScheduler, *routerFixture) {
	f := newRouterFixture(subs...)
	s := NewRetryScheduler(f.deliveries, f.subs, f.producer, testTopics.Retry, time.Minute, 100, zap.NewNop())
	return s, f
}

func TestSchedulerRequeuesDueFailedDelivery(t *testing.T) {
	sub := testSubscription(models.PriorityLow, "order.updated")
	s, f := newSchedulerFixture(sub)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return now }

	delivery := seedDelivery(f, sub, 1)
	f.deliveries.retryable = []models.WebhookDelivery{*delivery}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	msgs := f.producer.byTopic(testTopics.Retry)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 retry message, got %d", len(msgs))
	}
	var envelope types.DeliveryEnvelope
	if err := json.Unmarshal(msgs[0].value, &envelope); err != nil {
		t.Fatalf("failed to unmarshal envelope: %v", err)
	}
	if envelope.Attempts != 2 {
		t.Errorf("expected envelope attempts 2, got %d", envelope.Attempts)
	}

	if len(f.deliveries.updates) != 2 {
		t.Fatalf("expected retry then pending updates, got %d", len(f.deliveries.updates))
	}
	if f.deliveries.updates[0].status != models.StatusRetry {
		t.Errorf("expected first transition to retry, got %s", f.deliveries.updates[0].status)
	}
	// delay uses the pre-increment attempt count: 1000 * 2^1 = 2000ms
	wantNext := now.Add(2000 * time.Millisecond)
	if got := f.deliveries.updates[0].fields["next_retry_at"]; got != wantNext {
		t.Errorf("expected next_retry_at %v, got %v", wantNext, got)
	}
	if f.deliveries.updates[1].status != models.StatusPending {
		t.Errorf("expected second transition to pending, got %s", f.deliveries.updates[1].status)
	}
}

func TestSchedulerDropsInactiveSubscription(t *testing.T) {
	sub := testSubscription(models.PriorityLow, "order.updated")
	sub.IsActive = false
	s, f := newSchedulerFixture(sub)

	delivery := seedDelivery(f, sub, 1)
	f.deliveries.retryable = []models.WebhookDelivery{*delivery}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(f.producer.messages) != 0 {
		t.Error("candidate with inactive subscription must be dropped, not re-enqueued")
	}
	if f.deliveries.updateCount() != 0 {
		t.Error("dropped candidate must not be touched")
	}
}

func TestSchedulerForcesTerminalAtRetryBound(t *testing.T) {
	sub := testSubscription(models.PriorityLow, "order.updated")
	s, f := newSchedulerFixture(sub)

	delivery := seedDelivery(f, sub, sub.RetryConfig.MaxRetries)
	f.deliveries.retryable = []models.WebhookDelivery{*delivery}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(f.producer.messages) != 0 {
		t.Error("exhausted delivery must not be re-enqueued")
	}
	if len(f.deliveries.updates) != 1 {
		t.Fatalf("expected 1 status update, got %d", len(f.deliveries.updates))
	}
	update := f.deliveries.updates[0]
	if update.status != models.StatusFailed {
		t.Errorf("expected terminal failed, got %s", update.status)
	}
	if update.fields["error"] != "Max retries exceeded" {
		t.Errorf("expected 'Max retries exceeded', got %v", update.fields["error"])
	}
}

func TestSchedulerEmptyScanIsQuiet(t *testing.T) {
	s, f := newSchedulerFixture()

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(f.producer.messages) != 0 || f.deliveries.updateCount() != 0 {
		t.Error("empty scan must have no side effects")
	}
}
