package auth

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier delivers one-time tokens to the owner of an email address.
type Notifier interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogNotifier writes tokens to the log. It is meant for development only.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendVerification(_ context.Context, email, token string) error {
	n.log.Info().Str("email", email).Str("token", token).Msg("verification email")
	return nil
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.log.Info().Str("email", email).Str("token", token).Msg("password reset email")
	return nil
}
