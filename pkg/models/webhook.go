package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Subscription priority tiers. The tier is fixed per subscription and decides
// the transport path: HIGH rides the Redis fast queue, MEDIUM and LOW ride
// Kafka topics.
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// Delivery lifecycle statuses. success is terminal; failed is terminal once
// the retry bound is exhausted.
const (
	StatusPending    = "pending"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
	StatusRetry      = "retry"
	StatusDeadLetter = "dead-letter"
)

// RetryConfig bounds the retry behaviour of a single subscription.
type RetryConfig struct {
	MaxRetries        int     `gorm:"not null;default:5" json:"maxRetries" yaml:"maxRetries"`
	InitialDelayMs    int     `gorm:"not null;default:1000" json:"initialDelay" yaml:"initialDelay"`
	MaxDelayMs        int     `gorm:"not null;default:32000" json:"maxDelay" yaml:"maxDelay"`
	BackoffMultiplier float64 `gorm:"not null;default:2" json:"backoffMultiplier" yaml:"backoffMultiplier"`
}

// RateLimit is declared on the subscription but enforced by the gateway.
type RateLimit struct {
	MaxRequests  int `gorm:"not null;default:100" json:"maxRequests"`
	TimeWindowMs int `gorm:"not null;default:60000" json:"timeWindowMs"`
}

type WebhookSubscription struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID    string    `gorm:"size:100;not null;index" json:"clientId"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"size:500" json:"description,omitempty"`
	URL         string    `gorm:"size:2048;not null" json:"url"`
	Secret      string    `gorm:"size:256;not null" json:"-"`
	Events      []string  `gorm:"type:jsonb;serializer:json;not null" json:"events"`
	Priority    string    `gorm:"size:10;not null;index" json:"priority"`
	IsActive    bool      `gorm:"not null;default:true;index" json:"isActive"`

	RetryConfig RetryConfig `gorm:"embedded;embeddedPrefix:retry_" json:"retryConfig"`
	RateLimit   RateLimit   `gorm:"embedded;embeddedPrefix:ratelimit_" json:"rateLimit"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// HasEvent reports whether the subscription listens for the given event type.
// Exact, case-sensitive match.
func (s *WebhookSubscription) HasEvent(eventType string) bool {
	for _, e := range s.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// WebhookDelivery tracks one subscription's attempt(s) to receive one event.
// The payload is an immutable snapshot taken at dispatch time. The row keeps
// both the owning subscription id (used for retry joins) and the tenant's
// client id (used for tenant-scoped analytics).
type WebhookDelivery struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SubscriptionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"subscriptionId"`
	ClientID       string          `gorm:"size:100;not null;index" json:"clientId"`
	EventID        string          `gorm:"size:200;not null;index" json:"eventId"`
	EventType      string          `gorm:"size:200;not null;index" json:"eventType"`
	Payload        json.RawMessage `gorm:"type:jsonb" json:"payload"`
	Status         string          `gorm:"size:20;not null;index" json:"status"`
	StatusCode     *int            `json:"statusCode,omitempty"`
	Response       string          `gorm:"type:text" json:"response,omitempty"`
	Error          string          `gorm:"type:text" json:"error,omitempty"`
	AttemptCount   int             `gorm:"not null;default:0" json:"attemptCount"`
	NextRetryAt    *time.Time      `gorm:"index" json:"nextRetryAt,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// DeliveryAnalytics is the aggregate read model behind the stats endpoint.
type DeliveryAnalytics struct {
	Total               int64   `json:"total"`
	Successful          int64   `json:"successful"`
	Failed              int64   `json:"failed"`
	Pending             int64   `json:"pending"`
	SuccessRate         float64 `json:"successRate"`
	AverageResponseTime float64 `json:"averageResponseTime"`
}
