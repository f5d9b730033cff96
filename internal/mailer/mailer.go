// Package mailer provides a chainable message builder and the transport that
// hands finished messages to a delivery provider.
//
// A message is built once and sent once:
//
//	m := mailer.New(mailer.StaticSession(sess), nil)
//	msg, err := m.Message().
//		From(address.Named("noreply@example.com", "Example")).
//		To(address.Raw("ann@example.com")).
//		SubjectTemplate(template.MustText("subject", "Hi {{.name}}")).
//		TextBody("Welcome aboard.").
//		Put("name", "Ann").
//		Send(ctx)
package mailer

import "log/slog"

// Mailer creates builders that share a transport and session provider.
type Mailer struct {
	transport Transport
	sessions  SessionProvider
	logger    *slog.Logger
}

// New creates a Mailer sending through the default Dispatcher.
// A nil logger uses slog.Default().
func New(sessions SessionProvider, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		transport: NewDispatcher(logger),
		sessions:  sessions,
		logger:    logger,
	}
}

// NewWithTransport creates a Mailer that uses t instead of the default Dispatcher.
func NewWithTransport(t Transport, sessions SessionProvider) *Mailer {
	return &Mailer{
		transport: t,
		sessions:  sessions,
		logger:    slog.Default(),
	}
}

// Message starts a new message. opts are applied after the Mailer's own
// settings and may override them.
func (m *Mailer) Message(opts ...Option) *Builder {
	base := []Option{
		WithTransport(m.transport),
		WithSessionProvider(m.sessions),
		WithLogger(m.logger),
	}
	return NewBuilder(append(base, opts...)...)
}
