package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/notification"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/token"
)

// AccountUsecase defines the use cases of a signed-up account.
type AccountUsecase interface {
	// VerifyEmail redeems the raw verification token and marks the email verified.
	VerifyEmail(ctx context.Context, rawToken string) error

	// ResendVerification issues a new verification token if the email belongs to an
	// unverified account. It never reveals whether it did.
	ResendVerification(ctx context.Context, email string) error

	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) (*model.User, error)
	GetProfile(ctx context.Context, userID string) (*model.User, error)

	// DeleteAccount deactivates the account. The record is kept.
	DeleteAccount(ctx context.Context, userID, password string) error

	ListUsers(ctx context.Context, params repository.FilterUsersParams) ([]*model.User, error)
}

// UpdateProfileParams defines the optional fields of a profile update.
// Only the fields that are not nil will be updated.
type UpdateProfileParams struct {
	Username    *string
	Profile     *ProfileUpdate
	Preferences *PreferencesUpdate
}

// ProfileUpdate is merged into the stored profile field by field.
type ProfileUpdate struct {
	FirstName        *string
	LastName         *string
	Avatar           *string
	Bio              *string
	PhoneNumber      *string
	DateOfBirth      *string
	Address          *string
	EmergencyContact *string
}

// PreferencesUpdate is merged into the stored preferences field by field.
type PreferencesUpdate struct {
	Language           *string
	Timezone           *string
	EmailNotifications *bool
	PushNotifications  *bool
}

type accountUsecase struct {
	*base
}

// NewAccountUsecase creates a new instance of AccountUsecase.
func NewAccountUsecase(deps Dependencies) AccountUsecase {
	return &accountUsecase{base: newBase(deps)}
}

func (u *accountUsecase) VerifyEmail(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return ErrInvalidOrExpiredToken
	}
	hash := token.HashOpaque(rawToken)

	holder, err := u.UserRepo.FindByEmailVerificationToken(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	if !u.Tokens.RedeemOpaque(rawToken, holder.EmailVerification) {
		return ErrInvalidOrExpiredToken
	}

	user, err := u.UserRepo.ConsumeEmailVerificationToken(ctx, hash, u.Now())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	u.notify(ctx, notification.KindWelcome, user, notification.Payload{Username: user.Username})

	return nil
}

func (u *accountUsecase) ResendVerification(ctx context.Context, email string) error {
	user, err := u.UserRepo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}

	if user.IsEmailVerified || !user.IsActive {
		return nil
	}

	verification, err := u.Tokens.IssueOpaque(u.Config.Token.EmailVerificationTokenExpiresIn)
	if err != nil {
		return err
	}

	if _, err := u.UserRepo.UpdateUser(ctx, user.ID.Hex(), repository.UpdateUserParams{
		EmailVerification: &verification.Stored,
	}); err != nil {
		return err
	}

	u.notify(ctx, notification.KindVerification, user, notification.Payload{Token: verification.Raw})

	return nil
}

func (u *accountUsecase) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := u.UserRepo.GetUserWithPassword(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := u.verifyPassword(ctx, user, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	passwordHash, err := u.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}

	if _, err := u.UserRepo.UpdateUser(ctx, userID, repository.UpdateUserParams{
		PasswordHash:       &passwordHash,
		ClearRefreshTokens: true,
	}); err != nil {
		return err
	}

	u.notify(ctx, notification.KindPasswordChanged, user, notification.Payload{})

	return nil
}

func (u *accountUsecase) UpdateProfile(
	ctx context.Context,
	userID string,
	params UpdateProfileParams,
) (*model.User, error) {
	user, err := u.UserRepo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var update repository.UpdateUserParams

	if params.Username != nil {
		username := strings.TrimSpace(*params.Username)
		if username != user.Username {
			update.Username = &username
		}
	}

	if params.Profile != nil {
		profile := user.Profile
		if err := u.Cipher.DecryptFields(profile.SensitiveFields()); err != nil {
			return nil, err
		}

		mergeProfile(&profile, params.Profile)

		if err := u.Cipher.EncryptFields(profile.SensitiveFields()); err != nil {
			return nil, err
		}
		update.Profile = &profile
	}

	if params.Preferences != nil {
		preferences := user.Preferences
		mergePreferences(&preferences, params.Preferences)
		update.Preferences = &preferences
	}

	if update == (repository.UpdateUserParams{}) {
		return u.present(user)
	}

	updated, err := u.UserRepo.UpdateUser(ctx, userID, update)
	if err != nil {
		return nil, err
	}

	return u.present(updated)
}

func (u *accountUsecase) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := u.UserRepo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return u.present(user)
}

func (u *accountUsecase) DeleteAccount(ctx context.Context, userID, password string) error {
	user, err := u.UserRepo.GetUserWithPassword(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := u.verifyPassword(ctx, user, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	inactive := false
	if _, err := u.UserRepo.UpdateUser(ctx, userID, repository.UpdateUserParams{
		IsActive:           &inactive,
		ClearRefreshTokens: true,
	}); err != nil {
		return err
	}

	u.Logger.Info().Str("user_id", userID).Msg("account deactivated")

	return nil
}

func (u *accountUsecase) ListUsers(ctx context.Context, params repository.FilterUsersParams) ([]*model.User, error) {
	users, err := u.UserRepo.ListUsers(ctx, params)
	if err != nil {
		return nil, err
	}

	out := make([]*model.User, 0, len(users))
	for _, user := range users {
		presented, err := u.present(user)
		if err != nil {
			return nil, err
		}
		out = append(out, presented)
	}

	return out, nil
}

func mergeProfile(p *model.Profile, in *ProfileUpdate) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}

	set(&p.FirstName, in.FirstName)
	set(&p.LastName, in.LastName)
	set(&p.Avatar, in.Avatar)
	set(&p.Bio, in.Bio)
	set(&p.PhoneNumber, in.PhoneNumber)
	set(&p.DateOfBirth, in.DateOfBirth)
	set(&p.Address, in.Address)
	set(&p.EmergencyContact, in.EmergencyContact)
}

func mergePreferences(p *model.Preferences, in *PreferencesUpdate) {
	if in.Language != nil {
		p.Language = *in.Language
	}
	if in.Timezone != nil {
		p.Timezone = *in.Timezone
	}
	if in.EmailNotifications != nil {
		p.Notifications.Email = *in.EmailNotifications
	}
	if in.PushNotifications != nil {
		p.Notifications.Push = *in.PushNotifications
	}
}
