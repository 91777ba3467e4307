package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"investorradar/domain/core"
)

// Role controls what a user may call on the API
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether the role is known
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// User represents a system user
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user holds the administrative role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// SetPassword hashes and stores the given plaintext password
func (u *User) SetPassword(plain string) error {
	if len(plain) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// APIToken is a bearer credential. Only the sha256 digest is stored; the
// plaintext token is shown once at mint time.
type APIToken struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	Digest     string     `json:"-" db:"digest"`
	Label      string     `json:"label" db:"label"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Expired reports whether the token is past its expiry
func (t *APIToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}

// MintToken generates a fresh plaintext token and its storable record
func MintToken(userID uuid.UUID, label string, ttl time.Duration) (string, *APIToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	plain := hex.EncodeToString(raw)

	now := time.Now().UTC()
	token := &APIToken{
		ID:        uuid.New(),
		UserID:    userID,
		Digest:    TokenDigest(plain),
		Label:     label,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	return plain, token, nil
}

// TokenDigest returns the stored digest for a plaintext token
func TokenDigest(plain string) string {
	return core.NewHash([]byte(plain)).String()
}
