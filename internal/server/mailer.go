package server

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vidflow-dev/vidflow/internal/models"
)

// Message is an outgoing email
type Message struct {
	To      string
	Subject string
	Body    string
	// Link is the action URL embedded in Body
	Link string
}

// Mailer delivers account emails
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes emails to the log instead of sending them
type LogMailer struct {
	logger zerolog.Logger
}

// NewLogMailer creates a LogMailer
func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("link", msg.Link).
		Msg("Email")
	return nil
}

// sendLink mails an activation or reset link. Delivery failures are logged
// and do not fail the request.
func (s *Server) sendLink(c *gin.Context, account *models.Account, purpose, token string) {
	var msg Message
	path := url.PathEscape(account.ID) + "/" + url.PathEscape(token) + "/"

	switch purpose {
	case models.PurposeActivation:
		msg.Link = s.config.HTTP.PublicURL + "/activate/" + path
		msg.Subject = "Activate your vidflow account"
		msg.Body = fmt.Sprintf("Welcome to vidflow!\n\nActivate your account: %s\n", msg.Link)
	case models.PurposePasswordReset:
		msg.Link = s.config.HTTP.PublicURL + "/password_confirm/" + path
		msg.Subject = "Reset your vidflow password"
		msg.Body = fmt.Sprintf("Reset your password: %s\n\nIgnore this email if you did not ask for it.\n", msg.Link)
	default:
		s.logger.Error().Str("purpose", purpose).Msg("Unknown link purpose")
		return
	}
	msg.To = account.Email

	if err := s.mailer.Send(c.Request.Context(), msg); err != nil {
		s.logger.Error().Err(err).Str("email", account.Email).Str("purpose", purpose).Msg("Failed to send email")
	}
}
