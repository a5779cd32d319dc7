package models

import "time"

// TokenClaims is the decoded content of a session bearer token.
type TokenClaims struct {
	UserID    string    `json:"sub"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"exp"`
	IssuedAt  time.Time `json:"iat"`
}
