package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only JWT claims shape this service accepts.
// Every token is scoped to one conference; the picker never acts across
// conferences.
type Claims struct {
	jwt.RegisteredClaims

	UserID     string    `json:"user_id"`
	Conference string    `json:"conference"`
	Role       string    `json:"role"`
	TokenType  TokenType `json:"token_type"`
}
