package usecase

import (
	"context"
	"errors"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/notification"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/token"
)

// PasswordResetUsecase defines the business logic for password reset token operations.
type PasswordResetUsecase interface {
	// RequestPasswordReset initiates the password reset process for a given email.
	// It succeeds the same way whether or not the email belongs to an account.
	RequestPasswordReset(ctx context.Context, email string) error

	// ResetPassword redeems the raw reset token and replaces the password.
	ResetPassword(ctx context.Context, rawToken, newPassword string) error

	// ValidatePasswordResetToken checks the raw reset token without redeeming it.
	ValidatePasswordResetToken(ctx context.Context, rawToken string) error
}

type passwordResetUsecase struct {
	*base
}

// NewPasswordResetUsecase creates a new instance of PasswordResetUsecase.
func NewPasswordResetUsecase(deps Dependencies) PasswordResetUsecase {
	return &passwordResetUsecase{base: newBase(deps)}
}

func (u *passwordResetUsecase) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := u.UserRepo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// To prevent email enumeration, do not reveal that the email does not exist.
			return nil
		}
		return err
	}

	if !user.IsActive {
		return nil
	}

	reset, err := u.Tokens.IssueOpaque(u.Config.Token.PasswordResetTokenExpiresIn)
	if err != nil {
		return err
	}

	// Replaces any outstanding reset token.
	if _, err := u.UserRepo.UpdateUser(ctx, user.ID.Hex(), repository.UpdateUserParams{
		PasswordReset: &reset.Stored,
	}); err != nil {
		return err
	}

	u.notify(ctx, notification.KindPasswordReset, user, notification.Payload{Token: reset.Raw})

	return nil
}

func (u *passwordResetUsecase) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if _, err := u.redeemable(ctx, rawToken); err != nil {
		return err
	}

	passwordHash, err := u.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}

	// The consume is conditional on the same hash and expiry, so only one concurrent
	// redemption can win.
	user, err := u.UserRepo.ConsumePasswordResetToken(ctx, token.HashOpaque(rawToken), u.Now(), passwordHash)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	u.notify(ctx, notification.KindPasswordChanged, user, notification.Payload{})
	u.Logger.Info().Str("user_id", user.ID.Hex()).Msg("password reset")

	return nil
}

func (u *passwordResetUsecase) ValidatePasswordResetToken(ctx context.Context, rawToken string) error {
	_, err := u.redeemable(ctx, rawToken)
	return err
}

// redeemable returns the user holding rawToken if the token would redeem right now.
func (u *passwordResetUsecase) redeemable(ctx context.Context, rawToken string) (*model.User, error) {
	if rawToken == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	user, err := u.UserRepo.FindByPasswordResetToken(ctx, token.HashOpaque(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	if !user.IsActive || !u.Tokens.RedeemOpaque(rawToken, user.PasswordReset) {
		return nil, ErrInvalidOrExpiredToken
	}

	return user, nil
}
