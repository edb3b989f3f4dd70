package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/config"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/lockout"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/notification"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/token"
	"github.com/vasapolrittideah/identity-service/shared/auth"
	"github.com/vasapolrittideah/identity-service/shared/security"
)

const testPassword = "Abcd1234!"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentNotification struct {
	kind    notification.Kind
	email   string
	payload notification.Payload
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, kind notification.Kind, email string, payload notification.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{kind: kind, email: email, payload: payload})
	return n.err
}

// last returns the most recent notification of kind.
func (n *fakeNotifier) last(kind notification.Kind) (sentNotification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i], true
		}
	}
	return sentNotification{}, false
}

func (n *fakeNotifier) count(kind notification.Kind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.kind == kind {
			c++
		}
	}
	return c
}

type testEnv struct {
	repo     repository.UserRepository
	clock    *testClock
	notifier *fakeNotifier
	hasher   *security.Hasher
	cipher   *security.FieldCipher

	auth    AuthUsecase
	reset   PasswordResetUsecase
	account AccountUsecase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	cfg := &config.AuthServiceConfig{
		Token: config.TokenConfig{
			Issuer:                          "identity-service",
			Audience:                        "identity-users",
			AccessTokenSecret:               "access-secret",
			AccessTokenExpiresIn:            15 * time.Minute,
			RefreshTokenSecret:              "refresh-secret",
			RefreshTokenExpiresIn:           30 * 24 * time.Hour,
			EmailVerificationTokenExpiresIn: 24 * time.Hour,
			PasswordResetTokenExpiresIn:     time.Hour,
		},
	}

	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.Audience, cfg.Token.Issuer, clock.Now)
	factory := token.NewFactory(jwtAuth, token.Config{
		AccessTokenSecret:     cfg.Token.AccessTokenSecret,
		RefreshTokenSecret:    cfg.Token.RefreshTokenSecret,
		AccessTokenExpiresIn:  cfg.Token.AccessTokenExpiresIn,
		RefreshTokenExpiresIn: cfg.Token.RefreshTokenExpiresIn,
	}, clock.Now)

	env := &testEnv{
		repo:     repository.NewUserMemoryRepository(lockout.DefaultPolicy()),
		clock:    clock,
		notifier: &fakeNotifier{},
		hasher:   security.NewHasher(security.HasherConfig{TimeCost: 1, MemoryCost: 1024, Parallelism: 1}),
		cipher:   security.NewFieldCipher("test-master-key"),
	}

	deps := Dependencies{
		UserRepo: env.repo,
		Hasher:   env.hasher,
		Policy:   security.DefaultPasswordPolicy(),
		Cipher:   env.cipher,
		Tokens:   factory,
		Notifier: env.notifier,
		Config:   cfg,
		Now:      clock.Now,
	}

	env.auth = NewAuthUsecase(deps)
	env.reset = NewPasswordResetUsecase(deps)
	env.account = NewAccountUsecase(deps)

	return env
}

func (e *testEnv) register(t *testing.T, email, username string) *AuthResult {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterParams{
		Email:    email,
		Username: username,
		Password: testPassword,
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) stored(t *testing.T, userID string) *model.User {
	t.Helper()
	u, err := e.repo.GetUserWithPassword(context.Background(), userID)
	require.NoError(t, err)
	return u
}
