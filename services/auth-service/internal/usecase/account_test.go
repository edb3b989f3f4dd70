package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/notification"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/repository"
)

func ptr[T any](v T) *T { return &v }

func verificationToken(t *testing.T, env *testEnv) string {
	t.Helper()
	sent, ok := env.notifier.last(notification.KindVerification)
	require.True(t, ok)
	return sent.payload.Token
}

func TestVerifyEmail(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "a@x.com", "alice")
	ctx := context.Background()
	raw := verificationToken(t, env)

	require.NoError(t, env.account.VerifyEmail(ctx, raw))

	stored := env.stored(t, reg.User.ID.Hex())
	assert.True(t, stored.IsEmailVerified)
	assert.Nil(t, stored.EmailVerification)

	welcome, ok := env.notifier.last(notification.KindWelcome)
	require.True(t, ok)
	assert.Equal(t, "alice", welcome.payload.Username)

	assert.ErrorIs(t, env.account.VerifyEmail(ctx, raw), ErrInvalidOrExpiredToken)
}

func TestVerifyEmail_Expired(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "a@x.com", "alice")
	raw := verificationToken(t, env)

	env.clock.Advance(24*time.Hour + time.Second)

	assert.ErrorIs(t, env.account.VerifyEmail(context.Background(), raw), ErrInvalidOrExpiredToken)
	assert.False(t, env.stored(t, reg.User.ID.Hex()).IsEmailVerified)
}

func TestResendVerification(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "alice")
	ctx := context.Background()
	first := verificationToken(t, env)

	require.NoError(t, env.account.ResendVerification(ctx, "A@x.com"))
	second := verificationToken(t, env)
	assert.NotEqual(t, first, second)

	assert.ErrorIs(t, env.account.VerifyEmail(ctx, first), ErrInvalidOrExpiredToken)
	require.NoError(t, env.account.VerifyEmail(ctx, second))

	require.NoError(t, env.account.ResendVerification(ctx, "a@x.com"))
	require.NoError(t, env.account.ResendVerification(ctx, "ghost@x.com"))
	assert.Equal(t, 2, env.notifier.count(notification.KindVerification), "verified and unknown emails get nothing")
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "a@x.com", "alice")
	ctx := context.Background()
	userID := reg.User.ID.Hex()

	err := env.account.ChangePassword(ctx, userID, "Wrong1234!", newPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = env.account.ChangePassword(ctx, userID, testPassword, "weak")
	assert.ErrorIs(t, err, ErrWeakPassword)

	require.NoError(t, env.account.ChangePassword(ctx, userID, testPassword, newPassword))
	assert.Equal(t, 1, env.notifier.count(notification.KindPasswordChanged))

	_, err = env.auth.RefreshAccessToken(ctx, reg.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = env.auth.Login(ctx, LoginParams{Email: "a@x.com", Password: newPassword})
	assert.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "a@x.com", "alice")
	env.register(t, "b@x.com", "bob")
	ctx := context.Background()
	userID := reg.User.ID.Hex()

	got, err := env.account.UpdateProfile(ctx, userID, UpdateProfileParams{
		Username: ptr("alicia"),
		Profile: &ProfileUpdate{
			FirstName:   ptr("Alice"),
			PhoneNumber: ptr("090-1234-5678"),
		},
		Preferences: &PreferencesUpdate{
			Language:          ptr("en"),
			PushNotifications: ptr(false),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "alicia", got.Username)
	assert.Equal(t, "Alice", got.Profile.FirstName)
	assert.Equal(t, "090-1234-5678", got.Profile.PhoneNumber)
	assert.False(t, got.Profile.PhoneNumberEncrypted)
	assert.Equal(t, "en", got.Preferences.Language)
	assert.Equal(t, "Asia/Tokyo", got.Preferences.Timezone)
	assert.True(t, got.Preferences.Notifications.Email)
	assert.False(t, got.Preferences.Notifications.Push)

	stored := env.stored(t, userID)
	assert.True(t, stored.Profile.PhoneNumberEncrypted)
	assert.NotEqual(t, "090-1234-5678", stored.Profile.PhoneNumber)

	// A second update leaves the encrypted field readable.
	got, err = env.account.UpdateProfile(ctx, userID, UpdateProfileParams{
		Profile: &ProfileUpdate{Bio: ptr("hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "090-1234-5678", got.Profile.PhoneNumber)
	assert.Equal(t, "hello", got.Profile.Bio)

	_, err = env.account.UpdateProfile(ctx, userID, UpdateProfileParams{Username: ptr("bob")})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	got, err = env.account.UpdateProfile(ctx, userID, UpdateProfileParams{Username: ptr("alicia")})
	require.NoError(t, err, "unchanged username is a no-op")
	assert.Equal(t, "alicia", got.Username)
}

func TestGetProfile(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "a@x.com", "alice")
	ctx := context.Background()

	got, err := env.account.GetProfile(ctx, reg.User.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Empty(t, got.PasswordHash)
	assert.Nil(t, got.EmailVerification)
	assert.Empty(t, got.RefreshTokens)

	_, err = env.account.GetProfile(ctx, "000000000000000000000000")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "a@x.com", "alice")
	ctx := context.Background()
	userID := reg.User.ID.Hex()

	assert.ErrorIs(t, env.account.DeleteAccount(ctx, userID, "Wrong1234!"), ErrInvalidCredentials)

	require.NoError(t, env.account.DeleteAccount(ctx, userID, testPassword))

	stored := env.stored(t, userID)
	assert.False(t, stored.IsActive)
	assert.Empty(t, stored.RefreshTokens)
	assert.Equal(t, "a@x.com", stored.Email, "record is kept")

	_, err := env.auth.RefreshAccessToken(ctx, reg.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "alice")
	env.register(t, "b@x.com", "bob")
	ctx := context.Background()

	users, err := env.account.ListUsers(ctx, repository.FilterUsersParams{})
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Empty(t, u.PasswordHash)
	}

	admin := model.RoleAdmin
	users, err = env.account.ListUsers(ctx, repository.FilterUsersParams{Role: &admin})
	require.NoError(t, err)
	assert.Empty(t, users)
}
