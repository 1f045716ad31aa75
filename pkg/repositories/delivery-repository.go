package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thutasann/nano-pulse/pkg/models"
	"github.com/thutasann/nano-pulse/pkg/types"
	"gorm.io/gorm"
)

type DeliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) Create(ctx context.Context, delivery *models.WebhookDelivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

func (r *DeliveryRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookDelivery, error) {
	var delivery models.WebhookDelivery
	if err := r.db.WithContext(ctx).First(&delivery, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrDeliveryNotFound
		}
		return nil, err
	}
	return &delivery, nil
}

// UpdateStatus applies the status plus any extra fields as one partial merge.
// No read-modify-write in application code, so concurrent updaters cannot
// lose each other's fields.
func (r *DeliveryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, fields map[string]any) error {
	updates := map[string]any{"status": status}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.WebhookDelivery{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return types.ErrDeliveryNotFound
	}
	return nil
}

// FindFailedRetryable returns failed deliveries due for retry, oldest due
// first, capped at limit. The per-subscription retry bound is enforced by
// the scheduler after it re-resolves each owning subscription.
func (r *DeliveryRepository) FindFailedRetryable(ctx context.Context, limit int, now time.Time) ([]models.WebhookDelivery, error) {
	var deliveries []models.WebhookDelivery
	if err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", models.StatusFailed, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&deliveries).Error; err != nil {
		return nil, err
	}
	return deliveries, nil
}

// Analytics aggregates delivery outcomes for one subscription. Average
// response time is the created→updated delta over successful deliveries, in
// milliseconds.
func (r *DeliveryRepository) Analytics(ctx context.Context, subscriptionID uuid.UUID) (*models.DeliveryAnalytics, error) {
	var out models.DeliveryAnalytics

	base := r.db.WithContext(ctx).Model(&models.WebhookDelivery{}).Where("subscription_id = ?", subscriptionID)
	if err := base.Count(&out.Total).Error; err != nil {
		return nil, err
	}

	counts := []struct {
		status string
		dest   *int64
	}{
		{models.StatusSuccess, &out.Successful},
		{models.StatusFailed, &out.Failed},
		{models.StatusPending, &out.Pending},
	}
	for _, c := range counts {
		if err := r.db.WithContext(ctx).
			Model(&models.WebhookDelivery{}).
			Where("subscription_id = ? AND status = ?", subscriptionID, c.status).
			Count(c.dest).Error; err != nil {
			return nil, err
		}
	}

	var avgMs *float64
	if err := r.db.WithContext(ctx).
		Model(&models.WebhookDelivery{}).
		Where("subscription_id = ? AND status = ?", subscriptionID, models.StatusSuccess).
		Select("AVG(EXTRACT(EPOCH FROM (updated_at - created_at)) * 1000)").
		Scan(&avgMs).Error; err != nil {
		return nil, err
	}
	if avgMs != nil {
		out.AverageResponseTime = *avgMs
	}
	if out.Total > 0 {
		out.SuccessRate = float64(out.Successful) / float64(out.Total) * 100
	}
	return &out, nil
}

// Recent returns the latest deliveries for a subscription, newest first.
func (r *DeliveryRepository) Recent(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]models.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 10
	}
	var deliveries []models.WebhookDelivery
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deliveries).Error; err != nil {
		return nil, err
	}
	return deliveries, nil
}
