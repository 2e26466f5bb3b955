package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo persists/validates refresh tokens.  Only the SHA-256 hash of a
// token is stored; subject is a passport for passengers and a username
// for admins.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, subject, role, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (subject, role, token_hash, expires_at) VALUES (?,?,?,?)",
		subject, role, tokenHash, exp.UTC())
	return err
}

// ValidateRefresh returns the subject and role of a non-revoked,
// non-expired token, or sql.ErrNoRows.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (string, string, error) {
	var (
		subject, role string
		expiresAt     time.Time
		revokedAt     sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT subject, role, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&subject, &role, &expiresAt, &revokedAt)
	if err != nil {
		return "", "", err
	}
	if revokedAt.Valid || time.Now().UTC().After(expiresAt) {
		return "", "", sql.ErrNoRows
	}
	return subject, role, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// RevokeAllFor revokes every active token of a subject, e.g. after an
// admin account is deleted.
func (r *TokenRepo) RevokeAllFor(ctx context.Context, subject, role string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE subject=? AND role=? AND revoked_at IS NULL",
		subject, role)
	return err
}
