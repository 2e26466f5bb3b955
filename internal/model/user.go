package model

import "time"

// Roles carried in access tokens.
const (
	RolePassenger = "PASSENGER"
	RoleAdmin     = "ADMIN"
)

// AdminUser represents an operator account in the `admin_users` table.
//
// Fields:
//  ID           – primary key identifier.
//  Username     – unique login name.
//  PasswordHash – bcrypt hashed password.
//  CreatedAt    – timestamp of creation.
type AdminUser struct {
	ID           uint64    // admin_users.id
	Username     string    // admin_users.username
	PasswordHash string    // admin_users.password_hash
	CreatedAt    time.Time // admin_users.created_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA‑256 hash of the token is stored.  Subject is a passport number for
// passengers or a username for admins.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	Subject   string     // refresh_tokens.subject
	Role      string     // refresh_tokens.role
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
