// Package auth issues and verifies the bearer/cookie tokens that guard
// TradeDesk's HTTP surface. Authentication primitives are explicitly
// out of scope for the core (owned by whatever identity provider a
// deployment wires in), but the HTTP API still needs something that
// runs end to end, so this package implements the same bcrypt-password
// plus signed-token shape as the original FastAPI service
// (original_source/be/src/api/auth.py).
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/config"
	"github.com/quantdesk/tradedesk/pkg/models"
)

type userStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) (string, error)
}

// Service issues tokens and checks passwords for the auth endpoints (§6).
type Service struct {
	store      userStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// New builds a Service from the Startup Bootstrapper's loaded config. st
// is typically a *store.Store; it only needs to satisfy userStore.
func New(st userStore, cfg config.AuthConfig) *Service {
	return &Service{
		store:      st,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}
}

// IssueTokensForTest exposes issueTokens to other packages' tests that
// need a working token pair without going through Login (e.g. pkg/api's
// handler tests, which authenticate as a pre-seeded user directly).
func (s *Service) IssueTokensForTest(user *models.User) (access, refresh string, err error) {
	return s.issueTokens(user)
}

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NormalizeUsername lower-cases and validates a username: letters,
// digits, hyphen, and underscore only (be/src/schemas/auth.py's
// validate_username). Used at both signup/seed time and login time so
// lookups are always against the stored canonical form.
func NormalizeUsername(username string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(username))
	if normalized == "" {
		return "", apperrors.New(apperrors.KindInvalidArgument, "username must not be empty")
	}
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			continue
		}
		return "", apperrors.New(apperrors.KindInvalidArgument, "username can only contain letters, numbers, hyphens, and underscores")
	}
	return normalized, nil
}

// TokenPair is what the login endpoint returns (§6's LoginResponse shape).
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds, matching the access token's TTL
	User         models.User
}

// Login verifies credentials and issues a fresh token pair. Returns
// apperrors.KindUnauthenticated on any mismatch — invalid username and
// invalid password are indistinguishable to the caller, same as the
// Python original's single 401.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	normalized, err := NormalizeUsername(username)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnauthenticated, "invalid username or password", err)
	}

	user, err := s.store.GetUserByUsername(ctx, normalized)
	if err != nil {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "invalid username or password")
	}
	if !user.IsActive || !verifyPassword(user.PasswordHash, password) {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "invalid username or password")
	}

	access, refresh, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTTL.Seconds()),
		User:         *user,
	}, nil
}

// CurrentUser resolves the profile carried in an already-validated
// access token without re-querying the store — mirroring /auth/me's
// "derived from the token, not a DB re-fetch" semantics
// (be/src/api/auth.py).
func (s *Service) CurrentUser(claims *Claims) models.User {
	return models.User{
		ID:       claims.UserID,
		Username: claims.Username,
		IsAdmin:  claims.IsAdmin,
		IsActive: true,
	}
}
