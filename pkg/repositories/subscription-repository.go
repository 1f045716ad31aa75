package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/thutasann/nano-pulse/pkg/models"
	"github.com/thutasann/nano-pulse/pkg/types"
	"gorm.io/gorm"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.WebhookSubscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
	var sub models.WebhookSubscription
	if err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// FindActiveByEventType returns every active subscription whose events set
// contains eventType. Exact, case-sensitive containment against the jsonb
// column. An empty result means "no subscribers", not an error.
func (r *SubscriptionRepository) FindActiveByEventType(ctx context.Context, eventType string) ([]models.WebhookSubscription, error) {
	needle, err := json.Marshal([]string{eventType})
	if err != nil {
		return nil, err
	}

	var subs []models.WebhookSubscription
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND events @> ?", true, string(needle)).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *SubscriptionRepository) FindActiveByClient(ctx context.Context, clientID string) ([]models.WebhookSubscription, error) {
	var subs []models.WebhookSubscription
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND is_active = ?", clientID, true).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// Update applies a partial-field merge. Secrets never change through this
// path; callers strip them beforehand.
func (r *SubscriptionRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.WebhookSubscription, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WebhookSubscription{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, types.ErrSubscriptionNotFound
	}
	return r.FindByID(ctx, id)
}

// Deactivate soft-disables the subscription; it is excluded from fan-out and
// retry from then on. Subscriptions are never hard-deleted.
func (r *SubscriptionRepository) Deactivate(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
	return r.Update(ctx, id, map[string]any{"is_active": false})
}

// AddEvents unions the given event types into the subscription's set.
func (r *SubscriptionRepository) AddEvents(ctx context.Context, id uuid.UUID, events []string) (*models.WebhookSubscription, error) {
	sub, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := sub.Events
	for _, e := range events {
		if !sub.HasEvent(e) {
			merged = append(merged, e)
		}
	}
	return r.Update(ctx, id, map[string]any{"events": toJSON(merged)})
}

// RemoveEvents drops the given event types from the subscription's set.
func (r *SubscriptionRepository) RemoveEvents(ctx context.Context, id uuid.UUID, events []string) (*models.WebhookSubscription, error) {
	sub, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	drop := make(map[string]struct{}, len(events))
	for _, e := range events {
		drop[e] = struct{}{}
	}
	kept := make([]string, 0, len(sub.Events))
	for _, e := range sub.Events {
		if _, ok := drop[e]; !ok {
			kept = append(kept, e)
		}
	}
	return r.Update(ctx, id, map[string]any{"events": toJSON(kept)})
}

func toJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
