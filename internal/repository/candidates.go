package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

// CandidatesRepository tracks which helpers were invited to a request.
type CandidatesRepository interface {
	// InsertPending adds PENDING rows, ignoring pairs that already exist.
	InsertPending(ctx context.Context, tx *sqlx.Tx, requestID string, helperIDs []string) error
	ListHelperIDs(ctx context.Context, requestID string, states ...model.CandidateState) ([]string, error)
	// MarkNotified moves PENDING rows for the given helpers to NOTIFIED.
	MarkNotified(ctx context.Context, requestID string, helperIDs []string) (int64, error)
}

type CandidatesRepositoryImpl struct {
	db *sqlx.DB
}

func NewCandidatesRepository(db *sqlx.DB) *CandidatesRepositoryImpl {
	return &CandidatesRepositoryImpl{db: db}
}

var _ CandidatesRepository = (*CandidatesRepositoryImpl)(nil)

func (r *CandidatesRepositoryImpl) InsertPending(ctx context.Context, tx *sqlx.Tx, requestID string, helperIDs []string) error {
	if len(helperIDs) == 0 {
		return nil
	}
	rows := make([]model.CandidateEntry, 0, len(helperIDs))
	for _, h := range helperIDs {
		rows = append(rows, model.CandidateEntry{RequestID: requestID, HelperUserID: h, State: model.CandidatePending})
	}
	const q = `
		INSERT IGNORE INTO task_candidates (request_id, helper_user_id, state)
		VALUES (:request_id, :helper_user_id, :state)
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, q, rows)
		return err
	})
}

func (r *CandidatesRepositoryImpl) ListHelperIDs(ctx context.Context, requestID string, states ...model.CandidateState) ([]string, error) {
	if len(states) == 0 {
		states = []model.CandidateState{model.CandidatePending, model.CandidateNotified}
	}
	query, args, err := sqlx.In(`
		SELECT helper_user_id
		  FROM task_candidates
		 WHERE request_id = ? AND state IN (?)
		 ORDER BY id
	`, requestID, states)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *CandidatesRepositoryImpl) MarkNotified(ctx context.Context, requestID string, helperIDs []string) (int64, error) {
	if len(helperIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`
		UPDATE task_candidates
		   SET state = 'NOTIFIED', updated_at = NOW()
		 WHERE request_id = ? AND state = 'PENDING' AND helper_user_id IN (?)
	`, requestID, helperIDs)
	if err != nil {
		return 0, err
	}
	query = r.db.Rebind(query)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
