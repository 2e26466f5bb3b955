package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/airport-checkin/internal/database"
	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/utils"
)

// AdminUserRepo manages operator accounts.
type AdminUserRepo struct{ DB *sql.DB }

func NewAdminUserRepo(db *sql.DB) *AdminUserRepo { return &AdminUserRepo{DB: db} }

// Create hashes password and inserts the account.
func (r *AdminUserRepo) Create(ctx context.Context, username, password string, cost int) (model.AdminUser, error) {
	username = strings.TrimSpace(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return model.AdminUser{}, err
	}
	if _, err := r.DB.ExecContext(ctx,
		"INSERT INTO admin_users (username, password_hash) VALUES (?, ?)", username, hash); err != nil {
		if database.IsDuplicateKey(err) {
			return model.AdminUser{}, model.ErrUserExists
		}
		return model.AdminUser{}, err
	}
	return r.GetByUsername(ctx, username)
}

// GetByUsername fetches an account by its login name.
func (r *AdminUserRepo) GetByUsername(ctx context.Context, username string) (model.AdminUser, error) {
	var u model.AdminUser
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM admin_users WHERE username = ? LIMIT 1",
		strings.TrimSpace(username)).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return model.AdminUser{}, mapNoRows(err, model.ErrUserNotFound)
	}
	return u, nil
}

// List returns every account ordered by username.
func (r *AdminUserRepo) List(ctx context.Context) ([]model.AdminUser, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id, username, password_hash, created_at FROM admin_users ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AdminUser
	for rows.Next() {
		var u model.AdminUser
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Count returns the number of accounts.
func (r *AdminUserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM admin_users").Scan(&n)
	return n, err
}

// Delete removes an account by username.
func (r *AdminUserRepo) Delete(ctx context.Context, username string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM admin_users WHERE username = ?", strings.TrimSpace(username))
	if err != nil {
		return err
	}
	return expectOne(res, model.ErrUserNotFound)
}
