package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vasapolrittideah/identity-service/shared/security"
)

// User represents the identity record of one account.
type User struct {
	ID                bson.ObjectID  `bson:"_id,omitempty"`
	Email             string         `bson:"email"`
	Username          string         `bson:"username"`
	PasswordHash      string         `bson:"password_hash,omitempty"`
	Role              Role           `bson:"role"`
	IsActive          bool           `bson:"is_active"`
	IsEmailVerified   bool           `bson:"is_email_verified"`
	EmailVerification *OpaqueToken   `bson:"email_verification,omitempty"`
	PasswordReset     *OpaqueToken   `bson:"password_reset,omitempty"`
	RefreshTokens     []RefreshToken `bson:"refresh_tokens"`
	LoginAttempts     int            `bson:"login_attempts"`
	LockUntil         *time.Time     `bson:"lock_until,omitempty"`
	LastLogin         *time.Time     `bson:"last_login,omitempty"`
	Profile           Profile        `bson:"profile"`
	Preferences       Preferences    `bson:"preferences"`
	CreatedAt         time.Time      `bson:"created_at"`
	UpdatedAt         time.Time      `bson:"updated_at"`
}

// Profile holds user supplied personal details. The fields listed by SensitiveFields
// are stored encrypted.
type Profile struct {
	FirstName                 string `bson:"first_name,omitempty"`
	LastName                  string `bson:"last_name,omitempty"`
	Avatar                    string `bson:"avatar,omitempty"`
	Bio                       string `bson:"bio,omitempty"`
	PhoneNumber               string `bson:"phone_number,omitempty"`
	PhoneNumberEncrypted      bool   `bson:"phone_number_encrypted,omitempty"`
	DateOfBirth               string `bson:"date_of_birth,omitempty"`
	DateOfBirthEncrypted      bool   `bson:"date_of_birth_encrypted,omitempty"`
	Address                   string `bson:"address,omitempty"`
	AddressEncrypted          bool   `bson:"address_encrypted,omitempty"`
	EmergencyContact          string `bson:"emergency_contact,omitempty"`
	EmergencyContactEncrypted bool   `bson:"emergency_contact_encrypted,omitempty"`
}

// SensitiveFields returns the profile fields that must be encrypted at rest.
func (p *Profile) SensitiveFields() []security.Field {
	return []security.Field{
		{Name: "phone_number", Value: &p.PhoneNumber, Encrypted: &p.PhoneNumberEncrypted},
		{Name: "date_of_birth", Value: &p.DateOfBirth, Encrypted: &p.DateOfBirthEncrypted},
		{Name: "address", Value: &p.Address, Encrypted: &p.AddressEncrypted},
		{Name: "emergency_contact", Value: &p.EmergencyContact, Encrypted: &p.EmergencyContactEncrypted},
	}
}

// FullName returns "first last" when both are set and the username otherwise.
func (u *User) FullName() string {
	if u.Profile.FirstName != "" && u.Profile.LastName != "" {
		return u.Profile.FirstName + " " + u.Profile.LastName
	}
	return u.Username
}

// Preferences holds per-user settings.
type Preferences struct {
	Language      string                  `bson:"language"`
	Timezone      string                  `bson:"timezone"`
	Notifications NotificationPreferences `bson:"notifications"`
}

// NotificationPreferences selects the channels a user receives notifications on.
type NotificationPreferences struct {
	Email bool `bson:"email"`
	Push  bool `bson:"push"`
}

// DefaultPreferences returns the preferences assigned at registration.
func DefaultPreferences() Preferences {
	return Preferences{
		Language: "ja",
		Timezone: "Asia/Tokyo",
		Notifications: NotificationPreferences{
			Email: true,
			Push:  true,
		},
	}
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	c := *u
	if u.EmailVerification != nil {
		v := *u.EmailVerification
		c.EmailVerification = &v
	}
	if u.PasswordReset != nil {
		v := *u.PasswordReset
		c.PasswordReset = &v
	}
	if u.LockUntil != nil {
		v := *u.LockUntil
		c.LockUntil = &v
	}
	if u.LastLogin != nil {
		v := *u.LastLogin
		c.LastLogin = &v
	}
	c.RefreshTokens = append([]RefreshToken(nil), u.RefreshTokens...)
	return &c
}
