package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims carried by admin access tokens.
// The subject is the normalized admin email.
type TokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	Token     string
	ExpiresIn int64 // seconds
}
