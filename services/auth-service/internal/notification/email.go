package notification

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Sender is the part of mailer.Mailer used by EmailNotifier.
type Sender interface {
	SendHTML(to []string, subject, htmlBody, textBody string) error
}

// Links holds the application URLs embedded in emails.
type Links struct {
	VerifyEmailURL   string
	PasswordResetURL string
	LoginURL         string

	VerificationTTL  time.Duration
	PasswordResetTTL time.Duration
}

type emailNotifier struct {
	sender Sender
	links  Links
	logger *zerolog.Logger
}

// NewEmailNotifier returns a Notifier that renders each kind as HTML and sends it by SMTP.
func NewEmailNotifier(sender Sender, links Links, logger *zerolog.Logger) Notifier {
	return &emailNotifier{
		sender: sender,
		links:  links,
		logger: logger,
	}
}

func (n *emailNotifier) Notify(ctx context.Context, kind Kind, email string, payload Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := n.render(kind, payload)
	if err != nil {
		return err
	}

	if err := n.sender.SendHTML([]string{email}, msg.subject, msg.html, msg.text); err != nil {
		return fmt.Errorf("send %s email: %w", kind, err)
	}

	n.logger.Debug().Str("kind", string(kind)).Msg("notification email sent")

	return nil
}

type message struct {
	subject string
	html    string
	text    string
}

func (n *emailNotifier) render(kind Kind, payload Payload) (message, error) {
	switch kind {
	case KindVerification:
		link := withToken(n.links.VerifyEmailURL, payload.Token)
		return message{
			subject: "Verify your email address - AI Counseling",
			html: fmt.Sprintf(`
		<p>Thank you for registering with AI Counseling.</p>
		<p>Please confirm your email address by clicking the link below:</p>

		<p><a href="%s">%s</a></p>

		<p>This link will expire in %s.</p>
		<p>If you did not create an account, you can ignore this email.</p>
	`, link, link, n.links.VerificationTTL),
			text: fmt.Sprintf("Confirm your email address: %s (expires in %s)", link, n.links.VerificationTTL),
		}, nil

	case KindPasswordReset:
		link := withToken(n.links.PasswordResetURL, payload.Token)
		return message{
			subject: "Password Reset Request - AI Counseling",
			html: fmt.Sprintf(`
		<p>Hi,</p>
		<p>We received a request to reset the password for your account.</p>
		<p>If you made this request, please click the link below to create a new password:</p>

		<p><a href="%s">%s</a></p>

		<p>This link will expire in %s. After the reset you will need to sign in again on every device.</p>
		<p>If you did not request a password reset, you can safely ignore this email.</p>
	`, link, link, n.links.PasswordResetTTL),
			text: fmt.Sprintf("Reset your password: %s (expires in %s)", link, n.links.PasswordResetTTL),
		}, nil

	case KindPasswordChanged:
		return message{
			subject: "Your password was changed - AI Counseling",
			html: fmt.Sprintf(`
		<p>The password of your account was changed successfully.</p>
		<p><strong>For your security you have been signed out of every device.</strong></p>
		<p>Please <a href="%s">sign in</a> again with your new password.</p>
		<p>If you did not make this change, contact support immediately.</p>
	`, n.links.LoginURL),
			text: "The password of your account was changed and every session was signed out.",
		}, nil

	case KindWelcome:
		name := html.EscapeString(payload.Username)
		return message{
			subject: "Welcome to AI Counseling",
			html: fmt.Sprintf(`
		<p>Welcome, %s!</p>
		<p>Your email address is confirmed and your account is ready.</p>
		<p><a href="%s">Sign in</a> to get started.</p>
	`, name, n.links.LoginURL),
			text: fmt.Sprintf("Welcome, %s! Your account is ready.", payload.Username),
		}, nil
	}

	return message{}, fmt.Errorf("unknown notification kind %q", kind)
}

func withToken(base, token string) string {
	return base + "?token=" + url.QueryEscape(token)
}
