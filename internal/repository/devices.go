package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

type DevicesRepository interface {
	// Upsert registers a token or refreshes it, reactivating it if needed.
	Upsert(ctx context.Context, d model.Device) error
	// ListActiveByUsers returns active devices grouped by user id.
	ListActiveByUsers(ctx context.Context, userIDs []string) (map[string][]model.Device, error)
	// DeactivateByTokenHash reports ErrNotFound for an unknown hash.
	DeactivateByTokenHash(ctx context.Context, tokenHash string) error
}

type DevicesRepositoryImpl struct {
	db *sqlx.DB
}

func NewDevicesRepository(db *sqlx.DB) *DevicesRepositoryImpl {
	return &DevicesRepositoryImpl{db: db}
}

var _ DevicesRepository = (*DevicesRepositoryImpl)(nil)

func (r *DevicesRepositoryImpl) Upsert(ctx context.Context, d model.Device) error {
	if d.TokenHash == "" {
		d.TokenHash = model.HashToken(d.Token)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices
		    (user_id, token_hash, token, provider, platform, locale, active, last_seen_at, created_at, updated_at)
		VALUES
		    (?,       ?,          ?,     ?,        ?,        ?,      1,      NOW(),        NOW(),      NOW())
		ON DUPLICATE KEY UPDATE
		    user_id      = VALUES(user_id),
		    provider     = VALUES(provider),
		    platform     = VALUES(platform),
		    locale       = VALUES(locale),
		    active       = 1,
		    last_seen_at = VALUES(last_seen_at),
		    updated_at   = VALUES(updated_at)
	`, d.UserID, d.TokenHash, d.Token, d.Provider, d.Platform, d.Locale)
	return err
}

func (r *DevicesRepositoryImpl) ListActiveByUsers(ctx context.Context, userIDs []string) (map[string][]model.Device, error) {
	out := make(map[string][]model.Device, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	const base = `
		SELECT user_id, token_hash, token, provider, platform, locale, active, last_seen_at
		  FROM devices
		 WHERE active = 1 AND user_id IN (?)
		 ORDER BY user_id, last_seen_at DESC
	`
	query, args, err := sqlx.In(base, userIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var rows []model.Device
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	for _, d := range rows {
		out[d.UserID] = append(out[d.UserID], d)
	}
	return out, nil
}

func (r *DevicesRepositoryImpl) DeactivateByTokenHash(ctx context.Context, tokenHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices SET active = 0, updated_at = NOW() WHERE token_hash = ?
	`, tokenHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
