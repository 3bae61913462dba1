package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

// OutboxRepository defines persistence methods for the outbox table.
type OutboxRepository interface {
	// Insert writes a PENDING row. If tx is nil it opens and commits its own
	// transaction; otherwise it joins the caller's.
	Insert(ctx context.Context, tx *sqlx.Tx, e model.OutboxEntry) (int64, error)
	// ProcessDue locks up to limit due rows (PENDING or FAILED with
	// next_attempt_at <= now), skipping rows locked by other publishers, and
	// applies the updates fn returns, one per row. A row whose update fails
	// stays as it was; the rest still commit and the failures are returned
	// alongside the count.
	ProcessDue(ctx context.Context, now time.Time, limit int, fn func([]model.OutboxEntry) []model.OutboxUpdate) (int, error)
	// Replay moves a DEAD row back to PENDING and resets its attempt count.
	Replay(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*model.OutboxEntry, error)
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs an OutboxRepositoryImpl.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

func (r *OutboxRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, e model.OutboxEntry) (int64, error) {
	const q = `
		INSERT INTO outbox
		    (event_type, aggregate_id, topic, payload, status, attempt_count, next_attempt_at, created_at, updated_at)
		VALUES
		    (?,          ?,            ?,     ?,       'PENDING', 0,          NOW(),           NOW(),      NOW())
	`
	var id int64
	err := withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, e.EventType, e.AggregateID, e.Topic, e.Payload)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

const updateOutboxRow = `
	UPDATE outbox
	   SET status = ?, attempt_count = ?, next_attempt_at = ?, last_error = ?, updated_at = NOW()
	 WHERE id = ?
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *OutboxRepositoryImpl) ProcessDue(ctx context.Context, now time.Time, limit int, fn func([]model.OutboxEntry) []model.OutboxUpdate) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	const sel = `
		SELECT id, event_type, aggregate_id, topic, payload, status, attempt_count,
		       next_attempt_at, last_error, created_at, updated_at
		  FROM outbox
		 WHERE status IN ('PENDING', 'FAILED')
		   AND next_attempt_at <= ?
		 ORDER BY id
		 LIMIT ?
		 FOR UPDATE SKIP LOCKED
	`

	// fn may already have published; outcomes are recorded even if ctx is
	// cancelled meanwhile.
	bg := context.WithoutCancel(ctx)
	var (
		n      int
		updErr error
	)
	err := withTx(bg, r.db, nil, func(tx *sqlx.Tx) error {
		var rows []model.OutboxEntry
		if err := tx.SelectContext(ctx, &rows, sel, now, limit); err != nil {
			return fmt.Errorf("select due outbox rows: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		n, updErr = applyOutboxUpdates(bg, tx, rows, fn(rows))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, updErr
}

// applyOutboxUpdates writes updates[i] to rows[i] and keeps going past
// failed rows. It returns the number of rows written.
func applyOutboxUpdates(ctx context.Context, ex execer, rows []model.OutboxEntry, updates []model.OutboxUpdate) (int, error) {
	n := 0
	var errs []error
	for i, row := range rows {
		if i >= len(updates) {
			break
		}
		u := updates[i]
		if _, err := ex.ExecContext(ctx, updateOutboxRow, u.Status, u.AttemptCount, u.NextAttemptAt, u.LastError, row.ID); err != nil {
			errs = append(errs, fmt.Errorf("update outbox row %d: %w", row.ID, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

func (r *OutboxRepositoryImpl) Replay(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outbox
		   SET status = 'PENDING', attempt_count = 0, next_attempt_at = NOW(), last_error = NULL, updated_at = NOW()
		 WHERE id = ? AND status = 'DEAD'
	`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *OutboxRepositoryImpl) Get(ctx context.Context, id int64) (*model.OutboxEntry, error) {
	var e model.OutboxEntry
	err := r.db.GetContext(ctx, &e, `
		SELECT id, event_type, aggregate_id, topic, payload, status, attempt_count,
		       next_attempt_at, last_error, created_at, updated_at
		  FROM outbox
		 WHERE id = ?
	`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}
