package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thutasann/nano-pulse/pkg/models"
	"github.com/thutasann/nano-pulse/pkg/repositories"
	"github.com/thutasann/nano-pulse/pkg/types"
	"go.uber.org/zap"
)

type SubscriptionHandler struct {
	repo *repositories.SubscriptionRepository
	log  *zap.Logger
}

func NewSubscriptionHandler(repo *repositories.SubscriptionRepository, log *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{repo: repo, log: log}
}

type createSubscriptionRequest struct {
	ClientID    string              `json:"clientId"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	URL         string              `json:"url"`
	Secret      string              `json:"secret"`
	Events      []string            `json:"events"`
	Priority    string              `json:"priority"`
	RetryConfig *models.RetryConfig `json:"retryConfig"`
	RateLimit   *models.RateLimit   `json:"rateLimit"`
}

func validateSubscriptionRequest(req *createSubscriptionRequest) error {
	if req.ClientID == "" {
		return &types.ValidationError{Field: "clientId", Reason: "is required"}
	}
	if l := len(req.Name); l < 3 || l > 100 {
		return &types.ValidationError{Field: "name", Reason: "must be 3 to 100 characters"}
	}
	if len(req.Description) > 500 {
		return &types.ValidationError{Field: "description", Reason: "must be at most 500 characters"}
	}
	parsed, err := url.Parse(req.URL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return &types.ValidationError{Field: "url", Reason: "must be an absolute URL"}
	}
	if len(req.Secret) < 32 {
		return &types.ValidationError{Field: "secret", Reason: "must be at least 32 characters"}
	}
	if len(req.Events) == 0 {
		return &types.ValidationError{Field: "events", Reason: "must contain at least one event type"}
	}
	for _, e := range req.Events {
		if strings.TrimSpace(e) == "" {
			return &types.ValidationError{Field: "events", Reason: "must not contain empty event types"}
		}
	}
	switch req.Priority {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
	default:
		return &types.ValidationError{Field: "priority", Reason: "must be HIGH, MEDIUM or LOW"}
	}
	if rc := req.RetryConfig; rc != nil {
		if rc.MaxRetries < 1 || rc.MaxRetries > 10 {
			return &types.ValidationError{Field: "retryConfig.maxRetries", Reason: "must be between 1 and 10"}
		}
		if rc.InitialDelayMs < 100 || rc.InitialDelayMs > 5000 {
			return &types.ValidationError{Field: "retryConfig.initialDelay", Reason: "must be between 100 and 5000"}
		}
		if rc.MaxDelayMs < 1000 || rc.MaxDelayMs > 60000 {
			return &types.ValidationError{Field: "retryConfig.maxDelay", Reason: "must be between 1000 and 60000"}
		}
		if rc.BackoffMultiplier < 1 || rc.BackoffMultiplier > 5 {
			return &types.ValidationError{Field: "retryConfig.backoffMultiplier", Reason: "must be between 1 and 5"}
		}
		if rc.MaxDelayMs < rc.InitialDelayMs {
			return &types.ValidationError{Field: "retryConfig.maxDelay", Reason: "must be at least initialDelay"}
		}
	}
	if rl := req.RateLimit; rl != nil {
		if rl.MaxRequests < 1 || rl.MaxRequests > 1000 {
			return &types.ValidationError{Field: "rateLimit.maxRequests", Reason: "must be between 1 and 1000"}
		}
		if rl.TimeWindowMs < 1000 || rl.TimeWindowMs > 60000 {
			return &types.ValidationError{Field: "rateLimit.timeWindowMs", Reason: "must be between 1000 and 60000"}
		}
	}
	return nil
}

// Create registers a subscription. The secret is write-only and never echoed
// back in any response.
func (h *SubscriptionHandler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validateSubscriptionRequest(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sub := &models.WebhookSubscription{
			ClientID:    req.ClientID,
			Name:        req.Name,
			Description: req.Description,
			URL:         req.URL,
			Secret:      req.Secret,
			Events:      req.Events,
			Priority:    req.Priority,
			IsActive:    true,
			RetryConfig: models.RetryConfig{
				MaxRetries:        5,
				InitialDelayMs:    1000,
				MaxDelayMs:        32000,
				BackoffMultiplier: 2,
			},
			RateLimit: models.RateLimit{
				MaxRequests:  100,
				TimeWindowMs: 60000,
			},
		}
		if req.RetryConfig != nil {
			sub.RetryConfig = *req.RetryConfig
		}
		if req.RateLimit != nil {
			sub.RateLimit = *req.RateLimit
		}

		if err := h.repo.Create(c.Request.Context(), sub); err != nil {
			h.log.Error("failed to create subscription", zap.String("client_id", req.ClientID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create subscription"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": sub})
	}
}

func (h *SubscriptionHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("subscriptionId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
			return
		}
		sub, err := h.repo.FindByID(c.Request.Context(), id)
		if err != nil {
			h.respondError(c, id, err, "failed to get subscription")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": sub})
	}
}

// ListByClient returns the active subscriptions owned by one tenant,
// selected by the clientId query parameter.
func (h *SubscriptionHandler) ListByClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.Query("clientId")
		if clientID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "clientId query parameter is required"})
			return
		}
		subs, err := h.repo.FindActiveByClient(c.Request.Context(), clientID)
		if err != nil {
			h.log.Error("failed to list subscriptions", zap.String("client_id", clientID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list subscriptions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": subs})
	}
}

type updateSubscriptionRequest struct {
	Name        *string             `json:"name"`
	Description *string             `json:"description"`
	URL         *string             `json:"url"`
	Priority    *string             `json:"priority"`
	IsActive    *bool               `json:"isActive"`
	RetryConfig *models.RetryConfig `json:"retryConfig"`
}

// Update applies a partial merge. Absent fields are untouched; the secret and
// the events set have their own endpoints.
func (h *SubscriptionHandler) Update() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("subscriptionId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
			return
		}
		var req updateSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		fields := map[string]any{}
		if req.Name != nil {
			if l := len(*req.Name); l < 3 || l > 100 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "name must be 3 to 100 characters"})
				return
			}
			fields["name"] = *req.Name
		}
		if req.Description != nil {
			if len(*req.Description) > 500 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "description must be at most 500 characters"})
				return
			}
			fields["description"] = *req.Description
		}
		if req.URL != nil {
			parsed, err := url.Parse(*req.URL)
			if err != nil || !parsed.IsAbs() || parsed.Host == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "url must be an absolute URL"})
				return
			}
			fields["url"] = *req.URL
		}
		if req.Priority != nil {
			switch *req.Priority {
			case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "priority must be HIGH, MEDIUM or LOW"})
				return
			}
			fields["priority"] = *req.Priority
		}
		if req.IsActive != nil {
			fields["is_active"] = *req.IsActive
		}
		if rc := req.RetryConfig; rc != nil {
			if rc.MaxRetries < 1 || rc.MaxRetries > 10 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "retryConfig.maxRetries must be between 1 and 10"})
				return
			}
			fields["retry_max_retries"] = rc.MaxRetries
			fields["retry_initial_delay_ms"] = rc.InitialDelayMs
			fields["retry_max_delay_ms"] = rc.MaxDelayMs
			fields["retry_backoff_multiplier"] = rc.BackoffMultiplier
		}
		if len(fields) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no updatable fields in request"})
			return
		}

		sub, err := h.repo.Update(c.Request.Context(), id, fields)
		if err != nil {
			h.respondError(c, id, err, "failed to update subscription")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": sub})
	}
}

func (h *SubscriptionHandler) Deactivate() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("subscriptionId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
			return
		}
		sub, err := h.repo.Deactivate(c.Request.Context(), id)
		if err != nil {
			h.respondError(c, id, err, "failed to deactivate subscription")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": sub})
	}
}

type eventSetRequest struct {
	Events []string `json:"events"`
}

func (h *SubscriptionHandler) AddEvents() gin.HandlerFunc {
	return h.mutateEvents("add", h.repo.AddEvents)
}

func (h *SubscriptionHandler) RemoveEvents() gin.HandlerFunc {
	return h.mutateEvents("remove", h.repo.RemoveEvents)
}

func (h *SubscriptionHandler) mutateEvents(op string, apply func(ctx context.Context, id uuid.UUID, events []string) (*models.WebhookSubscription, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("subscriptionId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
			return
		}
		var req eventSetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(req.Events) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "events must contain at least one event type"})
			return
		}

		sub, err := apply(c.Request.Context(), id, req.Events)
		if err != nil {
			h.respondError(c, id, err, fmt.Sprintf("failed to %s events", op))
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": sub})
	}
}

func (h *SubscriptionHandler) respondError(c *gin.Context, id uuid.UUID, err error, msg string) {
	if errors.Is(err, types.ErrSubscriptionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.log.Error(msg, zap.String("subscription_id", id.String()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
