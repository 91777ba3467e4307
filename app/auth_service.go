package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"investorradar/domain/core"
	"investorradar/internal"
	"investorradar/internal/config"
	"investorradar/models"
	"investorradar/ports"
)

// AuthService issues and resolves bearer tokens. Lookup failures during
// login collapse into ErrInvalidCredentials so responses never reveal
// whether an email exists.
type AuthService struct {
	users  ports.UserRepository
	tokens ports.TokenRepository
	cfg    config.AuthConfig
	log    *internal.Logger
}

// LoginRequest carries the credential pair
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult returns the plaintext token exactly once
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// NewAuthService creates the account and token service
func NewAuthService(users ports.UserRepository, tokens ports.TokenRepository, cfg config.AuthConfig, logger *internal.Logger) *AuthService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		cfg:    cfg,
		log:    logger.Named("auth"),
	}
}

// Login verifies the credentials and mints a bearer token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive || !user.CheckPassword(req.Password) {
		return nil, core.ErrInvalidCredentials
	}

	plain, token, err := models.MintToken(user.ID, "login", s.cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Save(ctx, token); err != nil {
		return nil, err
	}

	s.log.Info("login: user=%s", user.Email)
	return &LoginResult{Token: plain, ExpiresAt: token.ExpiresAt, User: user}, nil
}

// Authenticate resolves a plaintext bearer token to its active user.
func (s *AuthService) Authenticate(ctx context.Context, plain string) (*models.User, error) {
	token, err := s.tokens.FindByDigest(ctx, models.TokenDigest(plain))
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, core.ErrInvalidCredentials
	}

	if err := s.tokens.TouchLastUsed(ctx, token.ID, time.Now().UTC()); err != nil {
		s.log.Debug("last-used stamp failed for token %s: %v", token.ID, err)
	}
	return user, nil
}

// Logout revokes the presented token.
func (s *AuthService) Logout(ctx context.Context, plain string) error {
	return s.tokens.Revoke(ctx, models.TokenDigest(plain))
}

// EnsureAdmin seeds the configured admin account when it does not exist
// yet. Called once at startup; a missing configuration is not an error.
func (s *AuthService) EnsureAdmin(ctx context.Context) error {
	if s.cfg.AdminEmail == "" || s.cfg.AdminPassword == "" {
		s.log.Debug("no admin account configured, skipping seed")
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(s.cfg.AdminEmail))

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrUserNotFound) {
		return err
	}

	now := time.Now().UTC()
	admin := &models.User{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: "Administrator",
		Role:        models.RoleAdmin,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := admin.SetPassword(s.cfg.AdminPassword); err != nil {
		return err
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return err
	}

	s.log.Info("seeded admin account %s", email)
	return nil
}

// CleanupExpired prunes tokens past their expiry.
func (s *AuthService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, time.Now().UTC())
}
