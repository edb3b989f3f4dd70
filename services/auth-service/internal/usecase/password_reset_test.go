package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/notification"
)

const newPassword = "Newpass5678?"

func requestReset(t *testing.T, env *testEnv, email string) string {
	t.Helper()
	require.NoError(t, env.reset.RequestPasswordReset(context.Background(), email))
	sent, ok := env.notifier.last(notification.KindPasswordReset)
	require.True(t, ok)
	return sent.payload.Token
}

func TestResetPassword_SingleRedemption(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "a@x.com", "alice")
	ctx := context.Background()

	raw := requestReset(t, env, "a@x.com")
	stored := env.stored(t, reg.User.ID.Hex())
	require.NotNil(t, stored.PasswordReset)
	assert.Equal(t, env.clock.Now().Add(time.Hour), stored.PasswordReset.ExpiresAt)
	assert.NotEqual(t, raw, stored.PasswordReset.Hash)

	require.NoError(t, env.reset.ValidatePasswordResetToken(ctx, raw))
	require.NoError(t, env.reset.ResetPassword(ctx, raw, newPassword))

	stored = env.stored(t, reg.User.ID.Hex())
	assert.Nil(t, stored.PasswordReset)
	assert.Empty(t, stored.RefreshTokens)
	assert.Equal(t, 1, env.notifier.count(notification.KindPasswordChanged))

	err := env.reset.ResetPassword(ctx, raw, "Another9012#")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	assert.ErrorIs(t, env.reset.ValidatePasswordResetToken(ctx, raw), ErrInvalidOrExpiredToken)

	_, err = env.auth.RefreshAccessToken(ctx, reg.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "reset revokes every session")

	_, err = env.auth.Login(ctx, LoginParams{Email: "a@x.com", Password: testPassword})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, LoginParams{Email: "a@x.com", Password: newPassword})
	assert.NoError(t, err)
}

func TestResetPassword_Expired(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "alice")
	ctx := context.Background()

	raw := requestReset(t, env, "a@x.com")
	env.clock.Advance(time.Hour + time.Second)

	assert.ErrorIs(t, env.reset.ValidatePasswordResetToken(ctx, raw), ErrInvalidOrExpiredToken)
	assert.ErrorIs(t, env.reset.ResetPassword(ctx, raw, newPassword), ErrInvalidOrExpiredToken)
}

func TestResetPassword_WeakPasswordKeepsToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "alice")
	ctx := context.Background()

	raw := requestReset(t, env, "a@x.com")

	assert.ErrorIs(t, env.reset.ResetPassword(ctx, raw, "weak"), ErrWeakPassword)
	assert.NoError(t, env.reset.ResetPassword(ctx, raw, newPassword))
}

func TestResetPassword_InvalidTokens(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "alice")
	ctx := context.Background()

	first := requestReset(t, env, "a@x.com")
	second := requestReset(t, env, "a@x.com")

	for _, raw := range []string{"", "deadbeef", first} {
		assert.ErrorIs(t, env.reset.ResetPassword(ctx, raw, newPassword), ErrInvalidOrExpiredToken)
	}
	assert.NoError(t, env.reset.ResetPassword(ctx, second, newPassword), "latest token replaces earlier ones")
}

func TestRequestPasswordReset_NoEnumeration(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "real@x.com", "real")
	ctx := context.Background()

	realErr := env.reset.RequestPasswordReset(ctx, "real@x.com")
	ghostErr := env.reset.RequestPasswordReset(ctx, "ghost@x.com")

	assert.NoError(t, realErr)
	assert.NoError(t, ghostErr)
	assert.Equal(t, 1, env.notifier.count(notification.KindPasswordReset))
}

func TestRequestPasswordReset_NotificationFailure(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "a@x.com", "alice")
	env.notifier.err = assert.AnError

	require.NoError(t, env.reset.RequestPasswordReset(context.Background(), "a@x.com"))

	assert.NotNil(t, env.stored(t, reg.User.ID.Hex()).PasswordReset, "state change is kept")
}

func TestRequestPasswordReset_InactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "a@x.com", "alice")
	ctx := context.Background()

	require.NoError(t, env.account.DeleteAccount(ctx, reg.User.ID.Hex(), testPassword))
	require.NoError(t, env.reset.RequestPasswordReset(ctx, "a@x.com"))

	assert.Zero(t, env.notifier.count(notification.KindPasswordReset))
}
