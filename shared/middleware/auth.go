package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey struct{}

// PrincipalKey is the context key under which the authenticated principal is stored.
var PrincipalKey = contextKey{}

var (
	ErrMissingAuthorization = errors.New("missing authorization header")
	ErrInvalidAuthorization = errors.New("invalid authorization header format")
)

// ErrorHandler writes the response for a request that failed authentication.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// NewBearerAuth returns middleware that resolves the bearer token with authenticate and
// stores the principal in the request context.
func NewBearerAuth[P any](
	authenticate func(ctx context.Context, token string) (P, error),
	onError ErrorHandler,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				onError(w, r, err)
				return
			}

			principal, err := authenticate(r.Context(), token)
			if err != nil {
				onError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom returns the principal stored by NewBearerAuth.
func PrincipalFrom[P any](ctx context.Context) (P, bool) {
	p, ok := ctx.Value(PrincipalKey).(P)
	return p, ok
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingAuthorization
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidAuthorization
	}

	return strings.TrimSpace(parts[1]), nil
}
