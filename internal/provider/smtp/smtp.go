// Package smtp implements a Provider that relays emails through an SMTP server.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/shineum/mailmessage/internal/email"
	"github.com/shineum/mailmessage/internal/mimemsg"
)

// defaultTimeout bounds dialing and each SMTP command.
const defaultTimeout = 30 * time.Second

// SMTPProviderConfig holds the configuration for creating a SMTPProvider.
type SMTPProviderConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// Auth is one of "plain", "login", "cram-md5" or empty for no authentication.
	Auth string
	// TLSPolicy is one of "mandatory", "opportunistic" or "none".
	TLSPolicy string
	// ImplicitTLS connects with TLS from the start (SMTPS, usually port 465).
	ImplicitTLS bool
	TLSConfig   *tls.Config
	HELO        string
	Timeout     time.Duration
	// Sender is used when a message carries no From address.
	Sender string
}

// Dialer sends go-mail messages over a fresh SMTP connection.
type Dialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPProvider relays messages to an SMTP server.
type SMTPProvider struct {
	sender string
	dialer Dialer
}

// New creates a new SMTPProvider. No connection is made until Send.
func New(cfg SMTPProviderConfig) (*SMTPProvider, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return NewWithDialer(cfg.Sender, client), nil
}

// NewWithDialer creates a SMTPProvider with a custom dialer, used for testing.
func NewWithDialer(sender string, dialer Dialer) *SMTPProvider {
	return &SMTPProvider{sender: sender, dialer: dialer}
}

// Send encodes msg as MIME and delivers it in a single SMTP transaction.
func (p *SMTPProvider) Send(ctx context.Context, msg *email.Message) error {
	if len(msg.From) == 0 && p.sender != "" {
		withSender := *msg
		withSender.From = []*mail.Address{{Address: p.sender}}
		msg = &withSender
	}

	m, err := mimemsg.Build(msg)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	if err := p.dialer.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("SMTP delivery failed: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *SMTPProvider) Name() string {
	return "smtp"
}

func clientOptions(cfg SMTPProviderConfig) ([]gomail.Option, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := []gomail.Option{gomail.WithTimeout(timeout)}

	if cfg.Port > 0 {
		opts = append(opts, gomail.WithPort(cfg.Port))
	}
	if cfg.HELO != "" {
		opts = append(opts, gomail.WithHELO(cfg.HELO))
	}

	policy, err := tlsPolicy(cfg.TLSPolicy)
	if err != nil {
		return nil, err
	}
	opts = append(opts, gomail.WithTLSPolicy(policy))
	if cfg.ImplicitTLS {
		opts = append(opts, gomail.WithSSL())
	}
	if cfg.TLSConfig != nil {
		opts = append(opts, gomail.WithTLSConfig(cfg.TLSConfig))
	}

	if cfg.Auth != "" {
		authType, err := authType(cfg.Auth)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			gomail.WithSMTPAuth(authType),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	return opts, nil
}

func tlsPolicy(name string) (gomail.TLSPolicy, error) {
	switch strings.ToLower(name) {
	case "", "mandatory":
		return gomail.TLSMandatory, nil
	case "opportunistic":
		return gomail.TLSOpportunistic, nil
	case "none":
		return gomail.NoTLS, nil
	default:
		return gomail.NoTLS, fmt.Errorf("unknown TLS policy %q", name)
	}
}

func authType(name string) (gomail.SMTPAuthType, error) {
	switch strings.ToLower(name) {
	case "plain":
		return gomail.SMTPAuthPlain, nil
	case "login":
		return gomail.SMTPAuthLogin, nil
	case "cram-md5":
		return gomail.SMTPAuthCramMD5, nil
	default:
		return "", fmt.Errorf("unknown SMTP auth type %q", name)
	}
}
