package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UserTokenKeyFetcher defines interface for retrieving user's TokenKey
type UserTokenKeyFetcher interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// ErrTokenKeyUnavailable means the per-user key could not be loaded, so the
// token cannot be checked.
var ErrTokenKeyUnavailable = errors.New("token key unavailable")

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	userRepo           UserTokenKeyFetcher
	keyTimeout         time.Duration
	now                func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:             secret,
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
		keyTimeout:         2 * time.Second,
		now:                time.Now,
	}
}

// SetUserRepo enables composite signing with the per-user TokenKey.
// Rotating a user's TokenKey then invalidates every token issued to them.
func (tm *TokenManager) SetUserRepo(repo UserTokenKeyFetcher) {
	tm.userRepo = repo
}

func (tm *TokenManager) AccessTokenExpiry() time.Duration {
	return tm.accessTokenExpiry
}

func (tm *TokenManager) signingKeyFor(user *models.User) []byte {
	if tm.userRepo == nil {
		return []byte(tm.secret)
	}
	return []byte(tm.secret + user.TokenKey)
}

// lookupSigningKey loads the composite key for validation. A missing user or
// a store error fails validation.
func (tm *TokenManager) lookupSigningKey(ctx context.Context, userID string) ([]byte, error) {
	if tm.userRepo == nil {
		return []byte(tm.secret), nil
	}

	ctx, cancel := context.WithTimeout(ctx, tm.keyTimeout)
	defer cancel()

	user, err := tm.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenKeyUnavailable, err)
	}
	return []byte(tm.secret + user.TokenKey), nil
}

func (tm *TokenManager) generate(user *models.User, tokenType string, expiry time.Duration) (string, error) {
	now := tm.now()
	claims := &models.TokenClaims{
		Type:   tokenType,
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.signingKeyFor(user))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return tokenString, nil
}

// GenerateAccessToken creates a short-lived access token with JTI
func (tm *TokenManager) GenerateAccessToken(user *models.User) (string, error) {
	return tm.generate(user, models.TokenTypeAccess, tm.accessTokenExpiry)
}

// GenerateRefreshToken creates a long-lived refresh token with JTI
func (tm *TokenManager) GenerateRefreshToken(user *models.User) (string, error) {
	return tm.generate(user, models.TokenTypeRefresh, tm.refreshTokenExpiry)
}

// IssuePair signs a fresh access and refresh token for user
func (tm *TokenManager) IssuePair(user *models.User) (*models.TokenPair, error) {
	access, err := tm.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := tm.GenerateRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(tm.accessTokenExpiry.Seconds()),
	}, nil
}

// ValidateToken verifies a token and returns its claims
func (tm *TokenManager) ValidateToken(ctx context.Context, tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		c, ok := token.Claims.(*models.TokenClaims)
		if !ok || c.UserID == "" {
			return nil, errors.New("invalid token: missing user id")
		}
		return tm.lookupSigningKey(ctx, c.UserID)
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(tm.now))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != models.TokenTypeAccess && claims.Type != models.TokenTypeRefresh {
		return nil, fmt.Errorf("invalid token: unknown type %q", claims.Type)
	}

	return claims, nil
}
