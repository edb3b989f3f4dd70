package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/lockout"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/notification"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/repository"
	authtypes "github.com/vasapolrittideah/identity-service/services/auth-service/pkg/types"
)

// AuthUsecase defines the interface for authentication-related use cases.
type AuthUsecase interface {
	Register(ctx context.Context, params RegisterParams) (*AuthResult, error)
	Login(ctx context.Context, params LoginParams) (*AuthResult, error)

	// Logout revokes one refresh token of the user.
	Logout(ctx context.Context, userID, refreshToken string) error

	// LogoutAll revokes every refresh token of the user.
	LogoutAll(ctx context.Context, userID string) error

	// RefreshAccessToken redeems a refresh token exactly once and returns a new pair.
	RefreshAccessToken(ctx context.Context, refreshToken string) (*authtypes.Tokens, error)

	// Authenticate resolves an access token to the principal it was issued for.
	Authenticate(ctx context.Context, accessToken string) (*Principal, error)
}

// RegisterParams defines the parameters for user registration.
type RegisterParams struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// LoginParams defines the parameters for user login.
type LoginParams struct {
	Email    string
	Password string
}

// AuthResult is the outcome of a successful registration or login.
type AuthResult struct {
	User   *model.User
	Tokens *authtypes.Tokens
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID        string
	Email         string
	Username      string
	Role          model.Role
	EmailVerified bool
}

// HasRole reports whether the principal holds one of roles.
func (p *Principal) HasRole(roles ...model.Role) bool {
	return p.Role.In(roles...)
}

type authUsecase struct {
	*base
}

// NewAuthUsecase creates a new instance of AuthUsecase.
func NewAuthUsecase(deps Dependencies) AuthUsecase {
	return &authUsecase{base: newBase(deps)}
}

func (u *authUsecase) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	email := normalizeEmail(params.Email)
	username := strings.TrimSpace(params.Username)

	existing, err := u.UserRepo.FindByEmailOrUsername(ctx, email, username)
	switch {
	case err == nil:
		if existing.Email == email {
			return nil, ErrDuplicateEmail
		}
		return nil, ErrDuplicateUsername
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, err
	}

	passwordHash, err := u.hashPassword(ctx, params.Password)
	if err != nil {
		return nil, err
	}

	verification, err := u.Tokens.IssueOpaque(u.Config.Token.EmailVerificationTokenExpiresIn)
	if err != nil {
		return nil, err
	}

	now := u.Now()
	user, err := u.UserRepo.CreateUser(ctx, &model.User{
		Email:             email,
		Username:          username,
		PasswordHash:      passwordHash,
		Role:              model.RoleUser,
		IsActive:          true,
		EmailVerification: &verification.Stored,
		Profile: model.Profile{
			FirstName: strings.TrimSpace(params.FirstName),
			LastName:  strings.TrimSpace(params.LastName),
		},
		Preferences: model.DefaultPreferences(),
		CreatedAt:   now,
	})
	if err != nil {
		return nil, err
	}

	u.notify(ctx, notification.KindVerification, user, notification.Payload{Token: verification.Raw})

	tokens, err := u.issueSession(ctx, user.ID.Hex())
	if err != nil {
		return nil, err
	}

	out, err := u.present(user)
	if err != nil {
		return nil, err
	}

	u.Logger.Info().Str("user_id", user.ID.Hex()).Msg("user registered")

	return &AuthResult{User: out, Tokens: tokens}, nil
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	user, err := u.UserRepo.GetUserByEmail(ctx, normalizeEmail(params.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			u.burnHash(ctx, params.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := u.Now()
	userID := user.ID.Hex()

	// A locked account is rejected before the password is looked at, and the attempt does
	// not extend the lock.
	if state := lockout.StateOf(user, now); state.Locked {
		u.Logger.Warn().
			Str("user_id", userID).
			Int("attempts", state.Attempts).
			Time("lock_until", state.Until).
			Msg("login on locked account")
		return nil, ErrAccountLocked
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	ok, err := u.verifyPassword(ctx, user, params.Password)
	if err != nil {
		return nil, err
	}

	if !ok {
		failed, err := u.UserRepo.IncrementLoginAttempts(ctx, userID, now)
		if err != nil {
			return nil, err
		}
		if lockout.IsLocked(failed.LockUntil, now) {
			u.Logger.Warn().Str("user_id", userID).Int("attempts", failed.LoginAttempts).Msg("account locked")
		}
		return nil, ErrInvalidCredentials
	}

	if err := u.UserRepo.ResetLoginAttempts(ctx, userID, now); err != nil {
		return nil, err
	}

	if u.Hasher.NeedsRehash(user.PasswordHash) {
		u.rehash(ctx, userID, params.Password)
	}

	tokens, err := u.issueSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.LoginAttempts = 0
	user.LockUntil = nil
	user.LastLogin = &now

	out, err := u.present(user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: out, Tokens: tokens}, nil
}

// rehash upgrades a legacy password hash after a successful login. Failure keeps the old hash.
func (u *authUsecase) rehash(ctx context.Context, userID, password string) {
	upgraded, err := u.Hasher.Hash(ctx, password)
	if err == nil {
		_, err = u.UserRepo.UpdateUser(ctx, userID, repository.UpdateUserParams{PasswordHash: &upgraded})
	}

	if err != nil {
		u.Logger.Warn().Err(err).Str("user_id", userID).Msg("failed to upgrade password hash")
		return
	}

	u.Logger.Info().Str("user_id", userID).Msg("password hash upgraded")
}

func (u *authUsecase) Logout(ctx context.Context, userID, refreshToken string) error {
	return u.UserRepo.RemoveRefreshToken(ctx, userID, refreshToken)
}

func (u *authUsecase) LogoutAll(ctx context.Context, userID string) error {
	return u.UserRepo.ClearRefreshTokens(ctx, userID)
}

func (u *authUsecase) RefreshAccessToken(ctx context.Context, refreshToken string) (*authtypes.Tokens, error) {
	userID, err := u.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	access, next, err := u.Tokens.IssuePair(userID)
	if err != nil {
		return nil, err
	}

	rotated, err := u.UserRepo.RotateRefreshToken(ctx, userID, refreshToken, next, u.Tokens.RefreshStaleBefore())
	if err != nil {
		return nil, err
	}

	// Not in the allow-list: already rotated, revoked or the user is gone. Reported the
	// same as a bad signature.
	if !rotated {
		return nil, ErrInvalidToken
	}

	return &authtypes.Tokens{AccessToken: access, RefreshToken: next.Token}, nil
}

func (u *authUsecase) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	userID, err := u.Tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}

	user, err := u.UserRepo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	return &Principal{
		UserID:        userID,
		Email:         user.Email,
		Username:      user.Username,
		Role:          user.Role,
		EmailVerified: user.IsEmailVerified,
	}, nil
}
