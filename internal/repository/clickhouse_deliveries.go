package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

// CHDeliveriesRepository writes and lists delivery outcomes in ClickHouse.
type CHDeliveriesRepository interface {
	InsertBatch(ctx context.Context, rows []model.DeliveryReport) error
	List(ctx context.Context, f DeliveryFilter) ([]model.DeliveryReport, error)
}

type DeliveryFilter struct {
	TaskID          string
	RecipientUserID string
	EventType       model.EventType
	Status          model.DeliveryStatus
	Limit           int
	Offset          int
}

type chDeliveriesRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHDeliveriesRepository(ch *sqlx.DB) CHDeliveriesRepository {
	return &chDeliveriesRepository{ch: ch}
}

// chDeliveryRow uses driver-native column types.
type chDeliveryRow struct {
	IdempotencyKey  string    `db:"idempotency_key"`
	EventID         string    `db:"event_id"`
	EventType       string    `db:"event_type"`
	TaskID          string    `db:"task_id"`
	RecipientUserID string    `db:"recipient_user_id"`
	Status          string    `db:"status"`
	Devices         int32     `db:"devices"`
	Error           string    `db:"error"`
	CreatedAt       time.Time `db:"created_at"`
}

// InsertBatch sends all rows as one ClickHouse block (prepare inside a tx).
func (r *chDeliveriesRepository) InsertBatch(ctx context.Context, rows []model.DeliveryReport) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO notify.deliveries
		    (idempotency_key, event_id, event_type, task_id, recipient_user_id, status, devices, error, created_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare clickhouse batch: %w", err)
	}
	defer stmt.Close()

	for _, d := range rows {
		created := d.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			d.IdempotencyKey, d.EventID, d.EventType.String(), d.TaskID, d.RecipientUserID,
			d.Status.String(), int32(d.Devices), d.Error, created,
		); err != nil {
			return fmt.Errorf("append clickhouse row: %w", err)
		}
	}
	return tx.Commit()
}

func (r *chDeliveriesRepository) List(ctx context.Context, f DeliveryFilter) ([]model.DeliveryReport, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := `
		SELECT idempotency_key, event_id, event_type, task_id, recipient_user_id, status, devices, error, created_at
		FROM notify.deliveries
		WHERE 1 = 1
	`
	var args []any

	if f.TaskID != "" {
		q += " AND task_id = ?"
		args = append(args, f.TaskID)
	}
	if f.RecipientUserID != "" {
		q += " AND recipient_user_id = ?"
		args = append(args, f.RecipientUserID)
	}
	if f.EventType != "" {
		q += " AND event_type = ?"
		args = append(args, f.EventType.String())
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status.String())
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	var rows []chDeliveryRow
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]model.DeliveryReport, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.DeliveryReport{
			IdempotencyKey:  row.IdempotencyKey,
			EventID:         row.EventID,
			EventType:       model.EventType(row.EventType),
			TaskID:          row.TaskID,
			RecipientUserID: row.RecipientUserID,
			Status:          model.DeliveryStatus(row.Status),
			Devices:         int(row.Devices),
			Error:           row.Error,
			CreatedAt:       row.CreatedAt,
		})
	}
	return out, nil
}
