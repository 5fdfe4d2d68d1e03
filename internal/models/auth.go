package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   Role   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is returned on sign-in and refresh
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// SignInResult bundles the issued tokens with the caller's identity and the
// summary of the previous sign-in.
type SignInResult struct {
	User      *User
	Tokens    *TokenPair
	LoginInfo LoginInfo
}
