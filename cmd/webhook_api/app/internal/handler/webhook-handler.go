package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thutasann/nano-pulse/pkg/dispatch"
	"github.com/thutasann/nano-pulse/pkg/types"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	router *dispatch.Router
	log    *zap.Logger
}

func NewWebhookHandler(router *dispatch.Router, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{router: router, log: log}
}

type triggerEventRequest struct {
	ID       string          `json:"id" binding:"required"`
	Type     string          `json:"type" binding:"required"`
	Payload  json.RawMessage `json:"payload"`
	Priority string          `json:"priority"`
}

// TriggerEvent accepts a producer event and fans it out. The response is a
// processed/failed tally, never a per-subscription error.
func (h *WebhookHandler) TriggerEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req triggerEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		event := &types.WebhookEvent{
			ID:       req.ID,
			Type:     req.Type,
			Payload:  req.Payload,
			Priority: req.Priority,
			Metadata: &types.EventMetadata{
				Timestamp: time.Now(),
				Source:    "api",
				ClientID:  c.GetHeader("X-Client-Id"),
			},
		}

		result, err := h.router.ProcessEvent(c.Request.Context(), event)
		if err != nil {
			if types.IsValidation(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			h.log.Error("failed to process webhook event", zap.String("event_id", req.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": result})
	}
}

// RetryDelivery re-queues one delivery by id.
func (h *WebhookHandler) RetryDelivery() gin.HandlerFunc {
	return func(c *gin.Context) {
		deliveryID, err := uuid.Parse(c.Param("deliveryId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delivery id"})
			return
		}

		result, err := h.router.RetryDelivery(c.Request.Context(), deliveryID)
		if err != nil {
			switch {
			case errors.Is(err, types.ErrDeliveryNotFound), errors.Is(err, types.ErrSubscriptionNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, types.ErrSubscriptionInactive):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				h.log.Error("failed to retry delivery", zap.String("delivery_id", deliveryID.String()), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retry delivery"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": result})
	}
}

// GetStats returns delivery analytics merged with realtime counters.
func (h *WebhookHandler) GetStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		subscriptionID, err := uuid.Parse(c.Param("subscriptionId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
			return
		}

		result, err := h.router.GetStats(c.Request.Context(), subscriptionID)
		if err != nil {
			if errors.Is(err, types.ErrSubscriptionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			h.log.Error("failed to get webhook stats", zap.String("subscription_id", subscriptionID.String()), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get webhook stats"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": result})
	}
}

// RecentDeliveries lists the latest deliveries for a subscription.
func (h *WebhookHandler) RecentDeliveries() gin.HandlerFunc {
	return func(c *gin.Context) {
		subscriptionID, err := uuid.Parse(c.Param("subscriptionId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

		deliveries, err := h.router.RecentDeliveries(c.Request.Context(), subscriptionID, limit)
		if err != nil {
			if errors.Is(err, types.ErrSubscriptionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			h.log.Error("failed to list recent deliveries", zap.String("subscription_id", subscriptionID.String()), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list deliveries"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": deliveries})
	}
}
