package types

import "github.com/golang-jwt/jwt/v5"

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// JWTClaims are the claims of access and refresh tokens. The user id is the subject.
type JWTClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Tokens is an access and refresh token pair handed to a client.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}
