package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/util"
)

// DeliveryLogRepository persists per-recipient delivery state keyed by the
// idempotency key. Each method commits on its own so no lock outlives the
// claim.
type DeliveryLogRepository interface {
	// GetByKey returns nil, nil when the key is unknown.
	GetByKey(ctx context.Context, key string) (*model.DeliveryLogEntry, error)
	// InsertProcessing returns ErrDuplicateKey if another worker holds the key.
	InsertProcessing(ctx context.Context, e model.DeliveryLogEntry) error
	// ReclaimFailed flips FAILED to PROCESSING; false means the row moved on.
	ReclaimFailed(ctx context.Context, key string) (bool, error)
	MarkSent(ctx context.Context, key string) error
	MarkFailed(ctx context.Context, key, reason string) error
	// DemoteStale fails PROCESSING rows not touched since before.
	DemoteStale(ctx context.Context, before time.Time, reason string) (int64, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.DeliveryLogEntry, error)
}

type DeliveryLogRepositoryImpl struct {
	db *sqlx.DB
}

func NewDeliveryLogRepository(db *sqlx.DB) *DeliveryLogRepositoryImpl {
	return &DeliveryLogRepositoryImpl{db: db}
}

var _ DeliveryLogRepository = (*DeliveryLogRepositoryImpl)(nil)

const deliveryCols = `id, idempotency_key, event_id, recipient_user_id, provider, status, last_error, created_at, updated_at`

func (r *DeliveryLogRepositoryImpl) GetByKey(ctx context.Context, key string) (*model.DeliveryLogEntry, error) {
	var e model.DeliveryLogEntry
	err := r.db.GetContext(ctx, &e, `SELECT `+deliveryCols+` FROM delivery_log WHERE idempotency_key = ? LIMIT 1`, key)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *DeliveryLogRepositoryImpl) InsertProcessing(ctx context.Context, e model.DeliveryLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_log
		    (id, idempotency_key, event_id, recipient_user_id, provider, status, created_at, updated_at)
		VALUES
		    (?,  ?,               ?,        ?,                 ?,        'PROCESSING', NOW(), NOW())
	`, e.ID, e.IdempotencyKey, e.EventID, e.RecipientUserID, e.Provider)
	if isDuplicate(err) {
		return ErrDuplicateKey
	}
	return err
}

func (r *DeliveryLogRepositoryImpl) ReclaimFailed(ctx context.Context, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE delivery_log
		   SET status = 'PROCESSING', updated_at = NOW()
		 WHERE idempotency_key = ? AND status = 'FAILED'
	`, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *DeliveryLogRepositoryImpl) MarkSent(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE delivery_log
		   SET status = 'SENT', last_error = NULL, updated_at = NOW()
		 WHERE idempotency_key = ?
	`, key)
	return err
}

func (r *DeliveryLogRepositoryImpl) MarkFailed(ctx context.Context, key, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE delivery_log
		   SET status = 'FAILED', last_error = ?, updated_at = NOW()
		 WHERE idempotency_key = ?
	`, util.Truncate(reason, maxErrorLen), key)
	return err
}

func (r *DeliveryLogRepositoryImpl) DemoteStale(ctx context.Context, before time.Time, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE delivery_log
		   SET status = 'FAILED', last_error = ?, updated_at = NOW()
		 WHERE status = 'PROCESSING' AND updated_at < ?
	`, util.Truncate(reason, maxErrorLen), before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *DeliveryLogRepositoryImpl) ListByEvent(ctx context.Context, eventID string) ([]model.DeliveryLogEntry, error) {
	var rows []model.DeliveryLogEntry
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+deliveryCols+` FROM delivery_log WHERE event_id = ? ORDER BY created_at`, eventID); err != nil {
		return nil, err
	}
	return rows, nil
}

const maxErrorLen = 512
