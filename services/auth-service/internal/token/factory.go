// Package token issues and verifies the three token families used by the auth service:
// signed access tokens, signed refresh tokens that are also allow-listed on the user
// record, and opaque single-use tokens of which only a hash is stored.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
	authtypes "github.com/vasapolrittideah/identity-service/services/auth-service/pkg/types"
	"github.com/vasapolrittideah/identity-service/shared/auth"
)

var (
	// ErrInvalidToken is returned for a token with a bad signature, shape or type.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned for a well-formed token past its expiry.
	ErrExpiredToken = errors.New("token has expired")
)

const opaqueTokenBytes = 32

// Config holds signing secrets and lifetimes.
type Config struct {
	AccessTokenSecret     string
	RefreshTokenSecret    string
	AccessTokenExpiresIn  time.Duration
	RefreshTokenExpiresIn time.Duration
}

// Factory issues and verifies tokens.
type Factory struct {
	jwtAuth auth.JWTAuthenticator
	cfg     Config
	now     func() time.Time
}

// NewFactory creates a Factory. The authenticator should share the same clock.
func NewFactory(jwtAuth auth.JWTAuthenticator, cfg Config, now func() time.Time) *Factory {
	if now == nil {
		now = time.Now
	}

	return &Factory{
		jwtAuth: jwtAuth,
		cfg:     cfg,
		now:     now,
	}
}

// IssueAccess returns a signed access token for userID.
func (f *Factory) IssueAccess(userID string) (string, error) {
	return f.issue(userID, authtypes.TokenTypeAccess, f.cfg.AccessTokenSecret, f.cfg.AccessTokenExpiresIn)
}

// IssueRefresh returns a signed refresh token for userID as the entry to persist.
func (f *Factory) IssueRefresh(userID string) (model.RefreshToken, error) {
	issuedAt := f.now()

	signed, err := f.issue(userID, authtypes.TokenTypeRefresh, f.cfg.RefreshTokenSecret, f.cfg.RefreshTokenExpiresIn)
	if err != nil {
		return model.RefreshToken{}, err
	}

	return model.RefreshToken{Token: signed, IssuedAt: issuedAt}, nil
}

// IssuePair returns a fresh access token and refresh entry for userID.
func (f *Factory) IssuePair(userID string) (string, model.RefreshToken, error) {
	access, err := f.IssueAccess(userID)
	if err != nil {
		return "", model.RefreshToken{}, err
	}

	refresh, err := f.IssueRefresh(userID)
	if err != nil {
		return "", model.RefreshToken{}, err
	}

	return access, refresh, nil
}

// VerifyAccess returns the user id carried by an access token.
func (f *Factory) VerifyAccess(token string) (string, error) {
	return f.verify(token, authtypes.TokenTypeAccess, f.cfg.AccessTokenSecret)
}

// VerifyRefresh checks the signature, expiry and type of a refresh token and returns its
// user id. Membership in the user's allow-list is checked by the store, not here.
func (f *Factory) VerifyRefresh(token string) (string, error) {
	return f.verify(token, authtypes.TokenTypeRefresh, f.cfg.RefreshTokenSecret)
}

// RefreshStaleBefore returns the instant before which refresh entries are considered expired.
func (f *Factory) RefreshStaleBefore() time.Time {
	return f.now().Add(-f.cfg.RefreshTokenExpiresIn)
}

func (f *Factory) issue(userID, tokenType, secret string, ttl time.Duration) (string, error) {
	claims := authtypes.JWTClaims{
		Type:             tokenType,
		RegisteredClaims: f.jwtAuth.RegisteredClaims(userID, uuid.NewString(), ttl),
	}

	signed, err := f.jwtAuth.GenerateToken(claims, secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}

	return signed, nil
}

func (f *Factory) verify(token, tokenType, secret string) (string, error) {
	var claims authtypes.JWTClaims
	if _, err := f.jwtAuth.ValidateTokenWithClaims(token, secret, &claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	if claims.Type != tokenType || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// Opaque is a freshly issued single-use token. Raw goes to the user; Stored goes to the record.
type Opaque struct {
	Raw    string
	Stored model.OpaqueToken
}

// IssueOpaque returns a random token valid for ttl.
func (f *Factory) IssueOpaque(ttl time.Duration) (Opaque, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return Opaque{}, fmt.Errorf("generate opaque token: %w", err)
	}
	raw := hex.EncodeToString(buf)

	return Opaque{
		Raw: raw,
		Stored: model.OpaqueToken{
			Hash:      HashOpaque(raw),
			ExpiresAt: f.now().Add(ttl),
		},
	}, nil
}

// RedeemOpaque reports whether raw matches the stored hash and the token is unexpired.
// Clearing the stored token after a successful redemption is the caller's job.
func (f *Factory) RedeemOpaque(raw string, stored *model.OpaqueToken) bool {
	if stored == nil || raw == "" {
		return false
	}

	presented := HashOpaque(raw)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(stored.Hash)) != 1 {
		return false
	}

	return f.now().Before(stored.ExpiresAt)
}

// HashOpaque returns the stored form of a raw opaque token.
func HashOpaque(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
