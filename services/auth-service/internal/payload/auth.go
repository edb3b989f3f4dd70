package payload

import (
	"time"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
)

type RegisterRequest struct {
	Email     string `json:"email"      validate:"required,email,max=254"`
	Username  string `json:"username"   validate:"required,min=3,max=30,alphanum"`
	Password  string `json:"password"   validate:"required,max=128"`
	FirstName string `json:"first_name" validate:"omitempty,max=50"`
	LastName  string `json:"last_name"  validate:"omitempty,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User         *UserResponse `json:"user"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type TokensResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,max=128"`
}

type PasswordStrengthRequest struct {
	Password string `json:"password" validate:"required,max=128"`
}

type PasswordStrengthResponse struct {
	Score    int      `json:"score"`
	Level    string   `json:"level"`
	Feedback []string `json:"feedback"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,max=128,nefield=CurrentPassword"`
}

type DeleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Username    *string             `json:"username"    validate:"omitempty,min=3,max=30,alphanum"`
	Profile     *ProfileRequest     `json:"profile"     validate:"omitempty"`
	Preferences *PreferencesRequest `json:"preferences" validate:"omitempty"`
}

type ProfileRequest struct {
	FirstName        *string `json:"first_name"        validate:"omitempty,max=50"`
	LastName         *string `json:"last_name"         validate:"omitempty,max=50"`
	Avatar           *string `json:"avatar"            validate:"omitempty,url"`
	Bio              *string `json:"bio"               validate:"omitempty,max=500"`
	PhoneNumber      *string `json:"phone_number"      validate:"omitempty,max=30"`
	DateOfBirth      *string `json:"date_of_birth"     validate:"omitempty,datetime=2006-01-02"`
	Address          *string `json:"address"           validate:"omitempty,max=200"`
	EmergencyContact *string `json:"emergency_contact" validate:"omitempty,max=200"`
}

type PreferencesRequest struct {
	Language           *string `json:"language"            validate:"omitempty,oneof=ja en"`
	Timezone           *string `json:"timezone"            validate:"omitempty,timezone"`
	EmailNotifications *bool   `json:"email_notifications"`
	PushNotifications  *bool   `json:"push_notifications"`
}

type UserResponse struct {
	ID              string              `json:"id"`
	Email           string              `json:"email"`
	Username        string              `json:"username"`
	Role            model.Role          `json:"role"`
	IsEmailVerified bool                `json:"is_email_verified"`
	IsActive        bool                `json:"is_active"`
	LastLogin       *time.Time          `json:"last_login,omitempty"`
	Profile         ProfileResponse     `json:"profile"`
	Preferences     PreferencesResponse `json:"preferences"`
	CreatedAt       time.Time           `json:"created_at"`
}

type ProfileResponse struct {
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	FullName         string `json:"full_name"`
	Avatar           string `json:"avatar,omitempty"`
	Bio              string `json:"bio,omitempty"`
	PhoneNumber      string `json:"phone_number,omitempty"`
	DateOfBirth      string `json:"date_of_birth,omitempty"`
	Address          string `json:"address,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
}

type PreferencesResponse struct {
	Language           string `json:"language"`
	Timezone           string `json:"timezone"`
	EmailNotifications bool   `json:"email_notifications"`
	PushNotifications  bool   `json:"push_notifications"`
}

type PrincipalResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *UserResponse `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// NewUserResponse converts a presented user for the wire.
func NewUserResponse(u *model.User) *UserResponse {
	return &UserResponse{
		ID:              u.ID.Hex(),
		Email:           u.Email,
		Username:        u.Username,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
		IsActive:        u.IsActive,
		LastLogin:       u.LastLogin,
		Profile: ProfileResponse{
			FirstName:        u.Profile.FirstName,
			LastName:         u.Profile.LastName,
			FullName:         u.FullName(),
			Avatar:           u.Profile.Avatar,
			Bio:              u.Profile.Bio,
			PhoneNumber:      u.Profile.PhoneNumber,
			DateOfBirth:      u.Profile.DateOfBirth,
			Address:          u.Profile.Address,
			EmergencyContact: u.Profile.EmergencyContact,
		},
		Preferences: PreferencesResponse{
			Language:           u.Preferences.Language,
			Timezone:           u.Preferences.Timezone,
			EmailNotifications: u.Preferences.Notifications.Email,
			PushNotifications:  u.Preferences.Notifications.Push,
		},
		CreatedAt: u.CreatedAt,
	}
}
