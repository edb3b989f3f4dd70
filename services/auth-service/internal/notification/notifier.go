// Package notification delivers account lifecycle messages to users out of band.
package notification

import (
	"context"
)

// Kind identifies a notification template.
type Kind string

const (
	KindVerification    Kind = "verification"
	KindPasswordReset   Kind = "password_reset"
	KindPasswordChanged Kind = "password_changed"
	KindWelcome         Kind = "welcome"
)

// Payload carries the values a notification template may render.
type Payload struct {
	Username string
	// Token is the raw opaque token for verification and password reset messages.
	Token string
}

// Notifier sends one notification. Callers treat delivery as fire-and-observe: a failure is
// logged but never undoes the state change that triggered it.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, email string, payload Payload) error
}
