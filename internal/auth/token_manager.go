package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/vidtube/backend/internal/models"
)

var (
	// ErrInvalidToken indicates a token that is missing, malformed, expired or badly signed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrIdentityNotFound indicates the token subject no longer maps to a user.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrRefreshTokenReused indicates a refresh token that is no longer the stored one.
	ErrRefreshTokenReused = errors.New("refresh token is expired or used")
)

// IdentityStore persists the refresh token side of a session on the user record.
type IdentityStore interface {
	// FindIdentity loads a user by id, returning ErrIdentityNotFound when absent.
	FindIdentity(ctx context.Context, userID string) (models.User, error)
	// SetRefreshToken overwrites the stored refresh token. An empty token clears it.
	SetRefreshToken(ctx context.Context, userID, token string) error
	// SwapRefreshToken replaces current with next only while current is still stored,
	// returning ErrRefreshTokenReused otherwise.
	SwapRefreshToken(ctx context.Context, userID, current, next string) error
}

// TokenConfig holds the signing secrets and lifetimes of issued tokens.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

type accessClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
	jwt.RegisteredClaims
}

// Manager issues, verifies and rotates JWT session tokens.
type Manager struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration

	store IdentityStore
	clock clockwork.Clock
}

// NewManager constructs a Manager. A nil clock uses the real clock.
func NewManager(cfg TokenConfig, store IdentityStore, clock clockwork.Clock) *Manager {
	if store == nil {
		panic("auth: identity store must not be nil")
	}
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		panic("auth: token secrets must not be empty")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		accessSecret:  []byte(cfg.AccessSecret),
		accessTTL:     cfg.AccessTTL,
		refreshSecret: []byte(cfg.RefreshSecret),
		refreshTTL:    cfg.RefreshTTL,
		store:         store,
		clock:         clock,
	}
}

// Issue signs a new token pair for user and stores the refresh token on the user
// record, revoking whichever refresh token was stored before.
func (m *Manager) Issue(ctx context.Context, user models.User) (models.SessionTokens, error) {
	tokens, err := m.sign(user)
	if err != nil {
		return models.SessionTokens{}, err
	}
	if err := m.store.SetRefreshToken(ctx, user.ID, tokens.RefreshToken); err != nil {
		return models.SessionTokens{}, fmt.Errorf("store refresh token: %w", err)
	}
	return tokens, nil
}

// VerifyAccess validates an access token and returns the user it was issued to.
func (m *Manager) VerifyAccess(ctx context.Context, token string) (models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.User{}, ErrInvalidToken
	}

	var claims accessClaims
	if _, err := jwt.ParseWithClaims(token, &claims, keyFunc(m.accessSecret), m.parserOptions()...); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := m.store.FindIdentity(ctx, claims.Subject)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Rotate exchanges a refresh token for a new pair. Every refresh token is single use:
// once rotated away, presenting it again fails with ErrRefreshTokenReused.
func (m *Manager) Rotate(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return models.SessionTokens{}, ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(refreshToken, &claims, keyFunc(m.refreshSecret), m.parserOptions()...); err != nil {
		return models.SessionTokens{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := m.store.FindIdentity(ctx, claims.Subject)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if subtle.ConstantTimeCompare([]byte(refreshToken), []byte(user.RefreshToken)) != 1 {
		return models.SessionTokens{}, ErrRefreshTokenReused
	}

	tokens, err := m.sign(user)
	if err != nil {
		return models.SessionTokens{}, err
	}
	if err := m.store.SwapRefreshToken(ctx, user.ID, refreshToken, tokens.RefreshToken); err != nil {
		return models.SessionTokens{}, err
	}
	return tokens, nil
}

// Revoke clears the stored refresh token of the user.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id must be provided")
	}
	return m.store.SetRefreshToken(ctx, userID, "")
}

func (m *Manager) sign(user models.User) (models.SessionTokens, error) {
	if user.ID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	now := m.clock.Now().UTC()
	accessExpires := now.Add(m.accessTTL)
	refreshExpires := now.Add(m.refreshTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
		RegisteredClaims: registered(user.ID, now, accessExpires),
	})
	accessToken, err := access.SignedString(m.accessSecret)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, registered(user.ID, now, refreshExpires))
	refreshToken, err := refresh.SignedString(m.refreshSecret)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

func (m *Manager) parserOptions() []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	}
}

// A random jti keeps two tokens issued within the same second distinct.
func registered(subject string, issuedAt, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func keyFunc(secret []byte) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) {
		return secret, nil
	}
}
