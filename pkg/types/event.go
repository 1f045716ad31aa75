package types

import (
	"encoding/json"
	"time"
)

// EventMetadata travels with the event. Extra holds open extension fields
// producers may attach.
type EventMetadata struct {
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	ClientID  string         `json:"clientId"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// WebhookEvent is the inbound unit of fan-out. It is ephemeral: only its
// derived deliveries are persisted. Priority is an advisory hint; routing
// always follows the subscription's priority.
type WebhookEvent struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Priority string          `json:"priority,omitempty"`
	Metadata *EventMetadata  `json:"metadata,omitempty"`
}

// Validate rejects malformed events before any queue or store write.
func (e *WebhookEvent) Validate() error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if e.Type == "" {
		return &ValidationError{Field: "type", Reason: "required"}
	}
	return nil
}

// SubscriptionRef is the frozen slice of a subscription that rides inside a
// delivery envelope: enough for the delivery sink to call and verify the
// endpoint, without carrying the full mutable subscription.
type SubscriptionRef struct {
	ID       string      `json:"id"`
	URL      string      `json:"url"`
	Secret   string      `json:"secret"`
	Priority string      `json:"priority"`
	Retry    RetryPolicy `json:"retryConfig"`
}

// RetryPolicy mirrors the subscription retryConfig on the wire.
type RetryPolicy struct {
	MaxRetries        int     `json:"maxRetries"`
	InitialDelayMs    int     `json:"initialDelay"`
	MaxDelayMs        int     `json:"maxDelay"`
	BackoffMultiplier float64 `json:"backoffMultiplier"`
}

// DeliveryEnvelope is the serialized bundle placed on a queue for one
// delivery attempt.
type DeliveryEnvelope struct {
	DeliveryID   string          `json:"deliveryId"`
	Event        WebhookEvent    `json:"event"`
	Subscription SubscriptionRef `json:"subscription"`
	Signature    string          `json:"signature"`
	Timestamp    time.Time       `json:"timestamp"`
	Attempts     int             `json:"attempts"`
}

// ProcessResult summarises one fan-out: how many per-subscription dispatches
// succeeded and how many failed. A failure never aborts siblings.
type ProcessResult struct {
	EventID   string `json:"eventId"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// RetryResult is the outcome of an explicit retry-by-id request.
type RetryResult struct {
	Status       string     `json:"status"` // "requeued" or "failed"
	NextAttempt  *time.Time `json:"nextAttempt,omitempty"`
	AttemptCount int        `json:"attemptCount,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}
