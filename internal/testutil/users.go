package testutil

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/utils"
)

// AdminRepo is an in-memory admin account store.  Passwords are hashed with
// bcrypt like the MySQL repository does.
type AdminRepo struct {
	mu     sync.Mutex
	users  map[string]model.AdminUser
	nextID uint64
}

func NewAdminRepo() *AdminRepo {
	return &AdminRepo{users: map[string]model.AdminUser{}}
}

func (r *AdminRepo) Create(_ context.Context, username, password string, cost int) (model.AdminUser, error) {
	username = strings.TrimSpace(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return model.AdminUser{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[username]; ok {
		return model.AdminUser{}, model.ErrUserExists
	}
	r.nextID++
	u := model.AdminUser{ID: r.nextID, Username: username, PasswordHash: hash, CreatedAt: time.Now().UTC()}
	r.users[username] = u
	return u, nil
}

func (r *AdminRepo) GetByUsername(_ context.Context, username string) (model.AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[strings.TrimSpace(username)]
	if !ok {
		return model.AdminUser{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *AdminRepo) List(_ context.Context) ([]model.AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AdminUser, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *AdminRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *AdminRepo) Delete(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[username]; !ok {
		return model.ErrUserNotFound
	}
	delete(r.users, username)
	return nil
}

// TokenRepo is an in-memory refresh token store keyed by token hash.
type TokenRepo struct {
	mu     sync.Mutex
	tokens map[string]model.RefreshToken
}

func NewTokenRepo() *TokenRepo {
	return &TokenRepo{tokens: map[string]model.RefreshToken{}}
}

var errInvalidRefresh = errors.New("refresh token invalid")

func (r *TokenRepo) StoreRefresh(_ context.Context, subject, role, hash string, exp time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[hash] = model.RefreshToken{Subject: subject, Role: role, TokenHash: hash, ExpiresAt: exp, CreatedAt: time.Now().UTC()}
	return nil
}

func (r *TokenRepo) ValidateRefresh(_ context.Context, hash string) (string, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok || t.RevokedAt != nil || !t.ExpiresAt.After(time.Now()) {
		return "", "", errInvalidRefresh
	}
	return t.Subject, t.Role, nil
}

func (r *TokenRepo) RevokeByHash(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	t.RevokedAt = &now
	r.tokens[hash] = t
	return nil
}

func (r *TokenRepo) RevokeAllFor(_ context.Context, subject, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for h, t := range r.tokens {
		if t.Subject == subject && t.Role == role && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.tokens[h] = t
		}
	}
	return nil
}
