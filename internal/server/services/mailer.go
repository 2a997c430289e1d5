package services

import (
	"context"

	"github.com/dmitrijs2005/fitauth/internal/logging"
)

// Mailer delivers one-time tokens to account owners.
type Mailer interface {
	SendVerification(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
}

// LogMailer writes messages to the log instead of sending them. It is the
// development default until an SMTP or provider-backed Mailer is configured.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "mailer")}
}

func (m *LogMailer) SendVerification(ctx context.Context, to, token string) error {
	m.logger.Info(ctx, "verification email", "to", to, "token", token)
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	m.logger.Info(ctx, "password reset email", "to", to, "token", token)
	return nil
}
