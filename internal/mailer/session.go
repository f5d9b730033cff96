package mailer

import (
	"context"
	"net/mail"

	"github.com/shineum/mailmessage/internal/provider"
)

// Session is the delivery handle a message is sent through: the provider that
// talks to the remote service plus the defaults applied to outgoing messages.
type Session struct {
	// Name labels the session in logs.
	Name string
	// Provider performs the actual delivery.
	Provider provider.Provider
	// DefaultFrom is used when a message has no From address.
	DefaultFrom *mail.Address
	// Hostname is the right-hand side of generated Message-IDs.
	Hostname string
}

// SessionProvider supplies the session used by Builder.Send.
type SessionProvider interface {
	Session(ctx context.Context) (*Session, error)
}

// SessionProviderFunc adapts a function to SessionProvider.
type SessionProviderFunc func(ctx context.Context) (*Session, error)

func (f SessionProviderFunc) Session(ctx context.Context) (*Session, error) {
	return f(ctx)
}

// StaticSession always returns s.
func StaticSession(s *Session) SessionProvider {
	return SessionProviderFunc(func(context.Context) (*Session, error) {
		return s, nil
	})
}
