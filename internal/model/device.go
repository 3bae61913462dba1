package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Device is an active push token registered for a user. Invalid tokens are
// deactivated, never deleted.
type Device struct {
	UserID     string    `db:"user_id" json:"user_id"`
	TokenHash  string    `db:"token_hash" json:"token_hash"`
	Token      string    `db:"token" json:"-"`
	Provider   string    `db:"provider" json:"provider"`
	Platform   string    `db:"platform" json:"platform"`
	Locale     string    `db:"locale" json:"locale"`
	Active     bool      `db:"active" json:"active"`
	LastSeenAt time.Time `db:"last_seen_at" json:"last_seen_at"`
}

// HashToken returns the hex SHA-256 of a push token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}
