package notification

import (
	"context"

	"github.com/rs/zerolog"
)

type logNotifier struct {
	logger *zerolog.Logger
}

// NewLogNotifier returns a Notifier that only logs. It is used when the mailer is disabled.
// Raw tokens are never logged.
func NewLogNotifier(logger *zerolog.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(_ context.Context, kind Kind, email string, _ Payload) error {
	n.logger.Info().
		Str("kind", string(kind)).
		Str("email", email).
		Msg("notification suppressed, mailer disabled")

	return nil
}
