package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/lockout"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestUser(email, username string) *model.User {
	return &model.User{
		Email:        email,
		Username:     username,
		PasswordHash: "$argon2id$test",
		Role:         model.RoleUser,
		IsActive:     true,
		Preferences:  model.DefaultPreferences(),
		CreatedAt:    testNow,
	}
}

func seed(t *testing.T, repo UserRepository, email, username string) *model.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), newTestUser(email, username))
	require.NoError(t, err)
	return u
}

func TestMemory_CreateUserUniqueness(t *testing.T) {
	repo := NewUserMemoryRepository(lockout.DefaultPolicy())
	ctx := context.Background()

	created := seed(t, repo, "alice@example.com", "alice")
	assert.False(t, created.ID.IsZero())

	_, err := repo.CreateUser(ctx, newTestUser("alice@example.com", "other"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = repo.CreateUser(ctx, newTestUser("other@example.com", "alice"))
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestMemory_PasswordHashVisibility(t *testing.T) {
	repo := NewUserMemoryRepository(lockout.DefaultPolicy())
	ctx := context.Background()
	u := seed(t, repo, "alice@example.com", "alice")

	withoutHash, err := repo.GetUser(ctx, u.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, withoutHash.PasswordHash)

	withHash, err := repo.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$test", withHash.PasswordHash)

	_, err = repo.GetUser(ctx, "not-an-id")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	repo := NewUserMemoryRepository(lockout.DefaultPolicy())
	ctx := context.Background()
	u := seed(t, repo, "alice@example.com", "alice")

	got, err := repo.GetUser(ctx, u.ID.Hex())
	require.NoError(t, err)
	got.Email = "mutated@example.com"

	again, err := repo.GetUser(ctx, u.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", again.Email)
}

func TestMemory_UpdateUser(t *testing.T) {
	repo := NewUserMemoryRepository(lockout.DefaultPolicy())
	ctx := context.Background()
	a := seed(t, repo, "alice@example.com", "alice")
	seed(t, repo, "bob@example.com", "bob")

	_, err := repo.UpdateUser(ctx, a.ID.Hex(), UpdateUserParams{})
	assert.ErrorIs(t, err, ErrNothingToUpdate)

	taken := "bob"
	_, err = repo.UpdateUser(ctx, a.ID.Hex(), UpdateUserParams{Username: &taken})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	renamed := "alicia"
	updated, err := repo.UpdateUser(ctx, a.ID.Hex(), UpdateUserParams{Username: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "alicia", updated.Username)
}

func TestMemory_ListUsers(t *testing.T) {
	repo := NewUserMemoryRepository(lockout.DefaultPolicy())
	ctx := context.Background()

	for i, name := range []string{"carol", "alice", "bob"} {
		u := newTestUser(name+"@example.com", name)
		u.CreatedAt = testNow.Add(time.Duration(i) * time.Minute)
		if name == "bob" {
			u.Role = model.RoleAdmin
		}
		_, err := repo.CreateUser(ctx, u)
		require.NoError(t, err)
	}

	all, err := repo.ListUsers(ctx, FilterUsersParams{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "carol", all[0].Username)

	sortBy := "username"
	page, err := repo.ListUsers(ctx, FilterUsersParams{SortBy: &sortBy, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "bob", page[0].Username)

	admin := model.RoleAdmin
	admins, err := repo.ListUsers(ctx, FilterUsersParams{Role: &admin})
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "bob", admins[0].Username)
}

func TestMemory_LoginAttempts(t *testing.T) {
	policy := lockout.Policy{MaxAttempts: 3, LockDuration: 2 * time.Hour}
	repo := NewUserMemoryRepository(policy)
	ctx := context.Background()
	u := seed(t, repo, "alice@example.com", "alice")

	var got *model.User
	var err error
	for range 3 {
		got, err = repo.IncrementLoginAttempts(ctx, u.ID.Hex(), testNow)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, got.LoginAttempts)
	require.NotNil(t, got.LockUntil)
	assert.Equal(t, testNow.Add(2*time.Hour), *got.LockUntil)

	got, err = repo.IncrementLoginAttempts(ctx, u.ID.Hex(), testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(2*time.Hour), *got.LockUntil, "lock is not extended")

	got, err = repo.IncrementLoginAttempts(ctx, u.ID.Hex(), testNow.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, got.LoginAttempts)
	assert.Nil(t, got.LockUntil)

	require.NoError(t, repo.ResetLoginAttempts(ctx, u.ID.Hex(), testNow.Add(4*time.Hour)))
	got, err = repo.GetUser(ctx, u.ID.Hex())
	require.NoError(t, err)
	assert.Zero(t, got.LoginAttempts)
	assert.Nil(t, got.LockUntil)
	require.NotNil(t, got.LastLogin)
}

func TestMemory_ConcurrentFailuresAreCounted(t *testing.T) {
	repo := NewUserMemoryRepository(lockout.Policy{MaxAttempts: 100, LockDuration: time.Hour})
	ctx := context.Background()
	u := seed(t, repo, "alice@example.com", "alice")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.IncrementLoginAttempts(ctx, u.ID.Hex(), testNow)
		}()
	}
	wg.Wait()

	got, err := repo.GetUser(ctx, u.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 20, got.LoginAttempts)
}

func TestMemory_RotateRefreshToken(t *testing.T) {
	repo := NewUserMemoryRepository(lockout.DefaultPolicy())
	ctx := context.Background()
	u := seed(t, repo, "alice@example.com", "alice")
	staleBefore := testNow.Add(-30 * 24 * time.Hour)

	stale := model.RefreshToken{Token: "stale", IssuedAt: staleBefore.Add(-time.Hour)}
	initial := model.RefreshToken{Token: "r1", IssuedAt: testNow}
	require.NoError(t, repo.AddRefreshToken(ctx, u.ID.Hex(), stale, staleBefore.Add(-2*time.Hour)))
	require.NoError(t, repo.AddRefreshToken(ctx, u.ID.Hex(), initial, staleBefore))

	got, err := repo.GetUser(ctx, u.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, []model.RefreshToken{initial}, got.RefreshTokens, "stale entry pruned on add")

	ok, err := repo.RotateRefreshToken(ctx, u.ID.Hex(), "r1", model.RefreshToken{Token: "r2", IssuedAt: testNow}, staleBefore)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.RotateRefreshToken(ctx, u.ID.Hex(), "r1", model.RefreshToken{Token: "r3", IssuedAt: testNow}, staleBefore)
	require.NoError(t, err)
	assert.False(t, ok, "rotated token cannot be reused")

	got, err = repo.GetUser(ctx, u.ID.Hex())
	require.NoError(t, err)
	require.Len(t, got.RefreshTokens, 1)
	assert.Equal(t, "r2", got.RefreshTokens[0].Token)
}

func TestMemory_ConcurrentRotationSingleWinner(t *testing.T) {
	repo := NewUserMemoryRepository(lockout.DefaultPolicy())
	ctx := context.Background()
	u := seed(t, repo, "alice@example.com", "alice")
	staleBefore := testNow.Add(-time.Hour)

	require.NoError(t, repo.AddRefreshToken(ctx, u.ID.Hex(), model.RefreshToken{Token: "r1", IssuedAt: testNow}, staleBefore))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry := model.RefreshToken{Token: string(rune('a' + i)), IssuedAt: testNow}
			ok, err := repo.RotateRefreshToken(ctx, u.ID.Hex(), "r1", entry, staleBefore)
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	got, err := repo.GetUser(ctx, u.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, got.RefreshTokens, 1)
}

func TestMemory_RotateRequiresActiveUser(t *testing.T) {
	repo := NewUserMemoryRepository(lockout.DefaultPolicy())
	ctx := context.Background()
	u := seed(t, repo, "alice@example.com", "alice")
	staleBefore := testNow.Add(-time.Hour)

	require.NoError(t, repo.AddRefreshToken(ctx, u.ID.Hex(), model.RefreshToken{Token: "r1", IssuedAt: testNow}, staleBefore))

	inactive := false
	_, err := repo.UpdateUser(ctx, u.ID.Hex(), UpdateUserParams{IsActive: &inactive})
	require.NoError(t, err)

	ok, err := repo.RotateRefreshToken(ctx, u.ID.Hex(), "r1", model.RefreshToken{Token: "r2", IssuedAt: testNow}, staleBefore)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_RemoveAndClearRefreshTokens(t *testing.T) {
	repo := NewUserMemoryRepository(lockout.DefaultPolicy())
	ctx := context.Background()
	u := seed(t, repo, "alice@example.com", "alice")
	staleBefore := testNow.Add(-time.Hour)

	for _, tok := range []string{"r1", "r2", "r3"} {
		require.NoError(t, repo.AddRefreshToken(ctx, u.ID.Hex(), model.RefreshToken{Token: tok, IssuedAt: testNow}, staleBefore))
	}

	require.NoError(t, repo.RemoveRefreshToken(ctx, u.ID.Hex(), "r2"))
	require.NoError(t, repo.RemoveRefreshToken(ctx, u.ID.Hex(), "missing"))

	got, err := repo.GetUser(ctx, u.ID.Hex())
	require.NoError(t, err)
	require.Len(t, got.RefreshTokens, 2)
	assert.Equal(t, "r1", got.RefreshTokens[0].Token)
	assert.Equal(t, "r3", got.RefreshTokens[1].Token)

	require.NoError(t, repo.ClearRefreshTokens(ctx, u.ID.Hex()))
	got, err = repo.GetUser(ctx, u.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, got.RefreshTokens)
}

func TestMemory_ConsumeEmailVerificationOnce(t *testing.T) {
	repo := NewUserMemoryRepository(lockout.DefaultPolicy())
	ctx := context.Background()
	u := seed(t, repo, "alice@example.com", "alice")

	token := model.OpaqueToken{Hash: "h1", ExpiresAt: testNow.Add(time.Hour)}
	_, err := repo.UpdateUser(ctx, u.ID.Hex(), UpdateUserParams{EmailVerification: &token})
	require.NoError(t, err)

	found, err := repo.FindByEmailVerificationToken(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = repo.ConsumeEmailVerificationToken(ctx, "h1", testNow.Add(time.Hour))
	assert.ErrorIs(t, err, ErrUserNotFound, "expiry is exclusive")

	verified, err := repo.ConsumeEmailVerificationToken(ctx, "h1", testNow)
	require.NoError(t, err)
	assert.True(t, verified.IsEmailVerified)
	assert.Nil(t, verified.EmailVerification)

	_, err = repo.ConsumeEmailVerificationToken(ctx, "h1", testNow)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemory_ConsumePasswordReset(t *testing.T) {
	repo := NewUserMemoryRepository(lockout.DefaultPolicy())
	ctx := context.Background()
	u := seed(t, repo, "alice@example.com", "alice")
	staleBefore := testNow.Add(-time.Hour)

	require.NoError(t, repo.AddRefreshToken(ctx, u.ID.Hex(), model.RefreshToken{Token: "r1", IssuedAt: testNow}, staleBefore))
	token := model.OpaqueToken{Hash: "h2", ExpiresAt: testNow.Add(time.Hour)}
	_, err := repo.UpdateUser(ctx, u.ID.Hex(), UpdateUserParams{PasswordReset: &token})
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ConsumePasswordResetToken(ctx, "h2", testNow, "$argon2id$new"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	got, err := repo.GetUserWithPassword(ctx, u.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$new", got.PasswordHash)
	assert.Nil(t, got.PasswordReset)
	assert.Empty(t, got.RefreshTokens)
}
