package model

import "time"

type DeliveryStatus string

const (
	DeliveryProcessing DeliveryStatus = "PROCESSING"
	DeliverySent       DeliveryStatus = "SENT"
	DeliveryFailed     DeliveryStatus = "FAILED"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) Valid() bool {
	return s == DeliveryProcessing || s == DeliverySent || s == DeliveryFailed
}

// DeliveryLogEntry is keyed by a unique idempotency key; at most one row per
// (event semantics, recipient) reaches SENT.
type DeliveryLogEntry struct {
	ID              string         `db:"id" json:"id"`
	IdempotencyKey  string         `db:"idempotency_key" json:"idempotency_key"`
	EventID         string         `db:"event_id" json:"event_id"`
	RecipientUserID string         `db:"recipient_user_id" json:"recipient_user_id"`
	Provider        string         `db:"provider" json:"provider"`
	Status          DeliveryStatus `db:"status" json:"status"`
	LastError       *string        `db:"last_error" json:"last_error,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// DeliveryReport is an analytics row emitted after each dispatch outcome.
type DeliveryReport struct {
	IdempotencyKey  string         `db:"idempotency_key" json:"idempotency_key"`
	EventID         string         `db:"event_id" json:"event_id"`
	EventType       EventType      `db:"event_type" json:"event_type"`
	TaskID          string         `db:"task_id" json:"task_id"`
	RecipientUserID string         `db:"recipient_user_id" json:"recipient_user_id"`
	Status          DeliveryStatus `db:"status" json:"status"`
	Devices         int            `db:"devices" json:"devices"`
	Error           string         `db:"error" json:"error,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}
