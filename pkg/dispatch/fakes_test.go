package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thutasann/nano-pulse/pkg/models"
	"github.com/thutasann/nano-pulse/pkg/stats"
	"github.com/thutasann/nano-pulse/pkg/types"
)

type fakeSubscriptionStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.WebhookSubscription
}

func newFakeSubscriptionStore(subs ...models.WebhookSubscription) *fakeSubscriptionStore {
	s := &fakeSubscriptionStore{
		byID: make(map[uuid.UUID]*models.WebhookSubscription),
	}
	for i := range subs {
		sub := subs[i]
		s.byID[sub.ID] = &sub
	}
	return s
}

// FindActiveByEventType filters at query time, like the real repository, so
// flipping IsActive on a stored subscription takes effect immediately.
func (s *fakeSubscriptionStore) FindActiveByEventType(_ context.Context, eventType string) ([]models.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WebhookSubscription
	for _, sub := range s.byID {
		if sub.IsActive && sub.HasEvent(eventType) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *fakeSubscriptionStore) FindByID(_ context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byID[id]
	if !ok {
		return nil, types.ErrSubscriptionNotFound
	}
	return sub, nil
}

type statusUpdate struct {
	id     uuid.UUID
	status string
	fields map[string]any
}

type fakeDeliveryStore struct {
	mu            sync.Mutex
	created       []*models.WebhookDelivery
	updates       []statusUpdate
	byID          map[uuid.UUID]*models.WebhookDelivery
	retryable     []models.WebhookDelivery
	failCreateFor map[uuid.UUID]bool
	updateErr     error
}

func newFakeDeliveryStore() *fakeDeliveryStore {
	return &fakeDeliveryStore{
		byID:          make(map[uuid.UUID]*models.WebhookDelivery),
		failCreateFor: make(map[uuid.UUID]bool),
	}
}

func (s *fakeDeliveryStore) Create(_ context.Context, d *models.WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateFor[d.SubscriptionID] {
		return errors.New("store unavailable")
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	s.created = append(s.created, d)
	s.byID[d.ID] = d
	return nil
}

func (s *fakeDeliveryStore) FindByID(_ context.Context, id uuid.UUID) (*models.WebhookDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[id]
	if !ok {
		return nil, types.ErrDeliveryNotFound
	}
	return d, nil
}

func (s *fakeDeliveryStore) UpdateStatus(_ context.Context, id uuid.UUID, status string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, statusUpdate{id: id, status: status, fields: fields})
	if d, ok := s.byID[id]; ok {
		d.Status = status
		if fields != nil {
			if n, ok := fields["attempt_count"].(int); ok {
				d.AttemptCount = n
			}
		}
	}
	return nil
}

func (s *fakeDeliveryStore) FindFailedRetryable(_ context.Context, limit int, _ time.Time) ([]models.WebhookDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.retryable) > limit {
		return s.retryable[:limit], nil
	}
	return s.retryable, nil
}

func (s *fakeDeliveryStore) Analytics(_ context.Context, _ uuid.UUID) (*models.DeliveryAnalytics, error) {
	return &models.DeliveryAnalytics{}, nil
}

func (s *fakeDeliveryStore) Recent(_ context.Context, _ uuid.UUID, _ int) ([]models.WebhookDelivery, error) {
	return nil, nil
}

func (s *fakeDeliveryStore) createdFor(subID uuid.UUID) []*models.WebhookDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.WebhookDelivery
	for _, d := range s.created {
		if d.SubscriptionID == subID {
			out = append(out, d)
		}
	}
	return out
}

func (s *fakeDeliveryStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

type publishedMessage struct {
	topic string
	key   []byte
	value []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{topic: topic, key: key, value: value})
	return nil
}

func (p *fakePublisher) byTopic(topic string) []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedMessage
	for _, m := range p.messages {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type fakeFastQueue struct {
	mu      sync.Mutex
	entries [][]byte
	pubsub  chan []byte
}

func newFakeFastQueue() *fakeFastQueue {
	return &fakeFastQueue{pubsub: make(chan []byte, 16)}
}

func (q *fakeFastQueue) Push(_ context.Context, payload []byte) error {
	q.mu.Lock()
	q.entries = append(q.entries, payload)
	q.mu.Unlock()
	select {
	case q.pubsub <- payload:
	default:
	}
	return nil
}

func (q *fakeFastQueue) Pop(_ context.Context) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, nil
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	return head, nil
}

func (q *fakeFastQueue) Subscribe(_ context.Context) (<-chan []byte, func() error) {
	return q.pubsub, func() error { return nil }
}

func (q *fakeFastQueue) Depth(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.entries)), nil
}

type fakeStatsRecorder struct {
	mu      sync.Mutex
	records [][2]string
}

func (f *fakeStatsRecorder) Record(_ context.Context, subscriptionID, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, [2]string{subscriptionID, eventType})
	return nil
}

func (f *fakeStatsRecorder) Read(_ context.Context, _ string) (*stats.RealtimeStats, error) {
	return &stats.RealtimeStats{}, nil
}
