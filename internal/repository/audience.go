package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

// AudienceRepository records who was addressed for a (task, event type,
// radius) combination when the event was emitted.
type AudienceRepository interface {
	Record(ctx context.Context, tx *sqlx.Tx, taskID string, t model.EventType, radiusMeters int, userIDs []string) error
	ListUserIDs(ctx context.Context, taskID string, t model.EventType, radiusMeters int) ([]string, error)
}

type AudienceRepositoryImpl struct {
	db *sqlx.DB
}

func NewAudienceRepository(db *sqlx.DB) *AudienceRepositoryImpl {
	return &AudienceRepositoryImpl{db: db}
}

var _ AudienceRepository = (*AudienceRepositoryImpl)(nil)

type audienceRow struct {
	TaskID       string `db:"task_id"`
	EventType    string `db:"event_type"`
	RadiusMeters int    `db:"radius_meters"`
	UserID       string `db:"user_id"`
}

func (r *AudienceRepositoryImpl) Record(ctx context.Context, tx *sqlx.Tx, taskID string, t model.EventType, radiusMeters int, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]audienceRow, 0, len(userIDs))
	for _, u := range userIDs {
		rows = append(rows, audienceRow{TaskID: taskID, EventType: t.String(), RadiusMeters: radiusMeters, UserID: u})
	}
	const q = `
		INSERT IGNORE INTO notification_audience (task_id, event_type, radius_meters, user_id)
		VALUES (:task_id, :event_type, :radius_meters, :user_id)
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, q, rows)
		return err
	})
}

func (r *AudienceRepositoryImpl) ListUserIDs(ctx context.Context, taskID string, t model.EventType, radiusMeters int) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT user_id
		  FROM notification_audience
		 WHERE task_id = ? AND event_type = ? AND radius_meters = ?
		 ORDER BY id
	`, taskID, t.String(), radiusMeters)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
