package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to      []string
	subject string
	html    string
	text    string
}

type fakeSender struct {
	sent []sentMail
	err  error
}

func (s *fakeSender) SendHTML(to []string, subject, htmlBody, textBody string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{to: to, subject: subject, html: htmlBody, text: textBody})
	return nil
}

func newTestNotifier(sender Sender) Notifier {
	logger := zerolog.Nop()
	return NewEmailNotifier(sender, Links{
		VerifyEmailURL:   "https://app.example.com/verify-email",
		PasswordResetURL: "https://app.example.com/reset-password",
		LoginURL:         "https://app.example.com/login",
		VerificationTTL:  24 * time.Hour,
		PasswordResetTTL: time.Hour,
	}, &logger)
}

func TestEmailNotifier_Kinds(t *testing.T) {
	tests := []struct {
		kind     Kind
		contains string
	}{
		{kind: KindVerification, contains: "https://app.example.com/verify-email?token=abc123"},
		{kind: KindPasswordReset, contains: "https://app.example.com/reset-password?token=abc123"},
		{kind: KindPasswordChanged, contains: "https://app.example.com/login"},
		{kind: KindWelcome, contains: "Welcome, alice"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			sender := &fakeSender{}
			n := newTestNotifier(sender)

			err := n.Notify(context.Background(), tt.kind, "alice@example.com", Payload{Username: "alice", Token: "abc123"})
			require.NoError(t, err)

			require.Len(t, sender.sent, 1)
			assert.Equal(t, []string{"alice@example.com"}, sender.sent[0].to)
			assert.NotEmpty(t, sender.sent[0].subject)
			assert.Contains(t, sender.sent[0].html, tt.contains)
			assert.NotEmpty(t, sender.sent[0].text)
		})
	}
}

func TestEmailNotifier_EscapesUsername(t *testing.T) {
	sender := &fakeSender{}
	n := newTestNotifier(sender)

	err := n.Notify(context.Background(), KindWelcome, "a@example.com", Payload{Username: "<script>"})
	require.NoError(t, err)
	assert.NotContains(t, sender.sent[0].html, "<script>")
}

func TestEmailNotifier_Errors(t *testing.T) {
	n := newTestNotifier(&fakeSender{err: errors.New("smtp down")})
	err := n.Notify(context.Background(), KindWelcome, "a@example.com", Payload{})
	assert.ErrorContains(t, err, "smtp down")

	n = newTestNotifier(&fakeSender{})
	err = n.Notify(context.Background(), Kind("unknown"), "a@example.com", Payload{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = n.Notify(ctx, KindWelcome, "a@example.com", Payload{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogNotifier(t *testing.T) {
	logger := zerolog.Nop()
	n := NewLogNotifier(&logger)
	assert.NoError(t, n.Notify(context.Background(), KindVerification, "a@example.com", Payload{Token: "x"}))
}
