// Package provider defines the interface for email delivery backends.
package provider

import (
	"context"

	"github.com/shineum/mailmessage/internal/email"
)

// Provider is the interface that email delivery backends must implement.
// Each provider performs the protocol-level delivery of a finished message
// to the target service (e.g., stdout, SMTP, AWS SES, Microsoft Graph, Resend).
type Provider interface {
	// Send delivers an email message through this provider.
	// It returns an error if the delivery fails.
	Send(ctx context.Context, msg *email.Message) error

	// Name returns the human-readable name of this provider.
	Name() string
}
