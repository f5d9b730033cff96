package mailer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shineum/mailmessage/internal/email"
)

// Transport delivers a finished message through a session.
type Transport interface {
	Send(ctx context.Context, msg *email.Message, sess *Session) error
}

// Dispatcher is the default Transport. It completes the envelope from the
// session and hands the message to the session's provider.
type Dispatcher struct {
	logger *slog.Logger
	newID  func() string
}

// NewDispatcher creates a Dispatcher. A nil logger uses slog.Default().
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Send fills in From and Message-ID when missing and delivers msg through
// sess.Provider. Every failure is returned as a *SendFailureError wrapping
// the cause.
func (d *Dispatcher) Send(ctx context.Context, msg *email.Message, sess *Session) error {
	if sess == nil || sess.Provider == nil {
		return &SendFailureError{Err: ErrNoProvider}
	}
	name := sess.Provider.Name()

	if len(msg.From) == 0 && sess.DefaultFrom != nil {
		from := *sess.DefaultFrom
		msg.From = append(msg.From, &from)
	}

	rcpts := msg.Recipients()
	if len(rcpts) == 0 {
		return &SendFailureError{Provider: name, Err: ErrNoRecipient}
	}

	if msg.MessageID == "" {
		msg.MessageID = d.messageID(sess.Hostname)
	}

	start := time.Now()
	if err := sess.Provider.Send(ctx, msg); err != nil {
		d.logger.Warn("message delivery failed",
			"session", sess.Name,
			"provider", name,
			"message_id", msg.MessageID,
			"error", err,
		)
		return &SendFailureError{Provider: name, Err: err}
	}

	d.logger.Info("message delivered",
		"session", sess.Name,
		"provider", name,
		"message_id", msg.MessageID,
		"recipients", len(rcpts),
		"attachments", len(msg.Attachments),
		"duration", time.Since(start),
	)
	return nil
}

func (d *Dispatcher) messageID(hostname string) string {
	if hostname == "" {
		hostname = "localhost"
	}
	return d.newID() + "@" + hostname
}
