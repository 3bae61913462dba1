package model

import "time"

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxPublished OutboxStatus = "PUBLISHED"
	OutboxFailed    OutboxStatus = "FAILED"
	OutboxDead      OutboxStatus = "DEAD"
)

func (s OutboxStatus) String() string { return string(s) }

// OutboxEntry is a row of the outbox table. Producers insert it in the same
// transaction as the state change; only the publisher mutates it.
type OutboxEntry struct {
	ID            int64        `db:"id"`
	EventType     string       `db:"event_type"`
	AggregateID   string       `db:"aggregate_id"`
	Topic         string       `db:"topic"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	AttemptCount  int          `db:"attempt_count"`
	NextAttemptAt time.Time    `db:"next_attempt_at"`
	LastError     *string      `db:"last_error"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

// OutboxUpdate is the state a processed row is moved to.
type OutboxUpdate struct {
	Status        OutboxStatus
	AttemptCount  int
	NextAttemptAt time.Time
	LastError     *string
}
