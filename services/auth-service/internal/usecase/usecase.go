package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/config"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/notification"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/token"
	authtypes "github.com/vasapolrittideah/identity-service/services/auth-service/pkg/types"
	"github.com/vasapolrittideah/identity-service/shared/security"
)

// Dependencies groups the collaborators shared by every account use case.
type Dependencies struct {
	UserRepo repository.UserRepository
	Hasher   *security.Hasher
	Policy   security.PasswordPolicy
	Cipher   *security.FieldCipher
	Tokens   *token.Factory
	Notifier notification.Notifier
	Config   *config.AuthServiceConfig
	Logger   *zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// base holds the helpers the use case implementations have in common.
type base struct {
	Dependencies

	dummyMu   sync.Mutex
	dummyHash string
}

func newBase(deps Dependencies) *base {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		nop := zerolog.Nop()
		deps.Logger = &nop
	}

	return &base{Dependencies: deps}
}

// notify sends a notification and logs a delivery failure without returning it.
func (b *base) notify(ctx context.Context, kind notification.Kind, user *model.User, payload notification.Payload) {
	if payload.Username == "" {
		payload.Username = user.FullName()
	}

	if err := b.Notifier.Notify(ctx, kind, user.Email, payload); err != nil {
		b.Logger.Error().
			Err(err).
			Str("kind", string(kind)).
			Str("user_id", user.ID.Hex()).
			Msg("failed to send notification")
	}
}

// issueSession mints an access and refresh token pair and allow-lists the refresh token,
// pruning stale entries in the same update.
func (b *base) issueSession(ctx context.Context, userID string) (*authtypes.Tokens, error) {
	access, refresh, err := b.Tokens.IssuePair(userID)
	if err != nil {
		return nil, err
	}

	if err := b.UserRepo.AddRefreshToken(ctx, userID, refresh, b.Tokens.RefreshStaleBefore()); err != nil {
		return nil, err
	}

	return &authtypes.Tokens{AccessToken: access, RefreshToken: refresh.Token}, nil
}

// present returns a copy of user that is safe to hand to the transport: sensitive profile
// fields decrypted and every secret removed.
func (b *base) present(user *model.User) (*model.User, error) {
	out := user.Clone()
	if err := b.Cipher.DecryptFields(out.Profile.SensitiveFields()); err != nil {
		return nil, err
	}

	out.PasswordHash = ""
	out.EmailVerification = nil
	out.PasswordReset = nil
	out.RefreshTokens = nil

	return out, nil
}

// burnHash runs a verification against a fixed hash so that an unknown email costs the same
// as a wrong password. The fixed hash outlives the request, so it is computed without the
// request's cancellation and retried until one attempt succeeds.
func (b *base) burnHash(ctx context.Context, password string) {
	_, _ = b.Hasher.Verify(ctx, password, b.timingHash(ctx))
}

func (b *base) timingHash(ctx context.Context) string {
	b.dummyMu.Lock()
	defer b.dummyMu.Unlock()

	if b.dummyHash == "" {
		hash, err := b.Hasher.Hash(context.WithoutCancel(ctx), "dummy-password-for-timing")
		if err != nil {
			b.Logger.Warn().Err(err).Msg("failed to prepare timing hash")
			return ""
		}
		b.dummyHash = hash
	}

	return b.dummyHash
}

// verifyPassword reports whether password matches the stored hash. A corrupt stored hash is
// logged and returned as an error, never treated as a mismatch.
func (b *base) verifyPassword(ctx context.Context, user *model.User, password string) (bool, error) {
	ok, err := b.Hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		if errors.Is(err, security.ErrCorruptHash) {
			b.Logger.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("stored password hash is corrupt")
		}
		return false, err
	}

	return ok, nil
}

// hashPassword checks the password policy and hashes password.
func (b *base) hashPassword(ctx context.Context, password string) (string, error) {
	if err := b.Policy.Validate(password); err != nil {
		return "", err
	}

	return b.Hasher.Hash(ctx, password)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
