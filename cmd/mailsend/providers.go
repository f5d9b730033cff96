package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shineum/mailmessage/internal/address"
	"github.com/shineum/mailmessage/internal/config"
	"github.com/shineum/mailmessage/internal/mailer"
	"github.com/shineum/mailmessage/internal/mimemsg"
	"github.com/shineum/mailmessage/internal/provider"
	"github.com/shineum/mailmessage/internal/provider/graph"
	"github.com/shineum/mailmessage/internal/provider/resend"
	"github.com/shineum/mailmessage/internal/provider/ses"
	smtpprovider "github.com/shineum/mailmessage/internal/provider/smtp"
	"github.com/shineum/mailmessage/internal/provider/stdout"
	smtptls "github.com/shineum/mailmessage/internal/tls"
)

var errUnknownProvider = errors.New("unknown provider")

// selectProvider chooses the email delivery backend based on configuration.
// If PROVIDER is set, it takes precedence. Otherwise the first configured
// backend wins in the order smtp, graph, ses, resend, falling back to stdout.
func selectProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "smtp":
		if !cfg.SMTPConfigured() {
			return nil, errors.New("SMTP provider selected but SMTP_HOST is required")
		}
		return newSMTP(cfg)

	case "ses":
		if !cfg.SESConfigured() {
			return nil, errors.New("SES provider selected but SES_REGION and SES_SENDER are required")
		}
		return newSES(ctx, cfg)

	case "graph":
		if !cfg.GraphConfigured() {
			return nil, errors.New("Graph provider selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET and GRAPH_SENDER are required")
		}
		return newGraph(cfg), nil

	case "resend":
		if !cfg.ResendConfigured() {
			return nil, errors.New("Resend provider selected but RESEND_API_KEY is required")
		}
		return newResend(cfg), nil

	case "stdout":
		slog.Info("using stdout provider")
		return stdout.New(), nil

	case "":
		switch {
		case cfg.SMTPConfigured():
			return newSMTP(cfg)
		case cfg.GraphConfigured():
			return newGraph(cfg), nil
		case cfg.SESConfigured():
			return newSES(ctx, cfg)
		case cfg.ResendConfigured():
			return newResend(cfg), nil
		}
		slog.Info("no provider configured, using stdout provider")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("%w: %q", errUnknownProvider, cfg.Provider)
	}
}

func newSMTP(cfg *config.Config) (provider.Provider, error) {
	tlsConfig, err := smtptls.ClientConfig(smtptls.ClientOptions{
		ServerName:         firstNonEmpty(cfg.SMTP.TLS.ServerName, cfg.SMTP.Host),
		CAFile:             cfg.SMTP.TLS.CAFile,
		CertFile:           cfg.SMTP.TLS.CertFile,
		KeyFile:            cfg.SMTP.TLS.KeyFile,
		InsecureSkipVerify: cfg.SMTP.TLS.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup TLS: %w", err)
	}

	auth := cfg.SMTP.Auth
	if auth == "" && cfg.SMTPAuthEnabled() {
		auth = "plain"
	}

	slog.Info("using SMTP provider",
		"host", cfg.SMTP.Host,
		"port", cfg.SMTP.Port,
		"tls_policy", cfg.SMTP.TLSPolicy,
		"implicit_tls", cfg.SMTP.ImplicitTLS,
		"auth", auth,
	)
	if cfg.DKIMConfigured() {
		slog.Warn("DKIM signing is not applied by the SMTP provider")
	}

	p, err := smtpprovider.New(smtpprovider.SMTPProviderConfig{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		Auth:        auth,
		TLSPolicy:   cfg.SMTP.TLSPolicy,
		ImplicitTLS: cfg.SMTP.ImplicitTLS,
		TLSConfig:   tlsConfig,
		HELO:        cfg.SMTP.HELO,
		Timeout:     cfg.SMTP.Timeout,
		Sender:      cfg.Mail.From,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP provider: %w", err)
	}
	return p, nil
}

func newSES(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	dkimOpts, err := loadDKIM(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("using AWS SES provider",
		"region", cfg.SES.Region,
		"sender", cfg.SES.Sender,
		"dkim", dkimOpts != nil,
	)
	p, err := ses.New(ctx, ses.SESProviderConfig{
		Region:          cfg.SES.Region,
		AccessKeyID:     cfg.SES.AccessKeyID,
		SecretAccessKey: cfg.SES.SecretAccessKey,
		Sender:          cfg.SES.Sender,
		DKIM:            dkimOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SES provider: %w", err)
	}
	return p, nil
}

func newGraph(cfg *config.Config) provider.Provider {
	slog.Info("using Microsoft Graph provider",
		"sender", cfg.Graph.Sender,
	)
	return graph.New(graph.GraphProviderConfig{
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		Sender:       cfg.Graph.Sender,
	})
}

func newResend(cfg *config.Config) provider.Provider {
	slog.Info("using Resend provider",
		"sender", cfg.Resend.SenderEmail,
	)
	return resend.New(resend.ResendProviderConfig{
		APIKey:     cfg.Resend.APIKey,
		Sender:     firstNonEmpty(cfg.Resend.SenderEmail, cfg.Mail.From),
		SenderName: cfg.Resend.SenderName,
	})
}

// loadDKIM returns nil when DKIM is not configured.
func loadDKIM(cfg *config.Config) (*mimemsg.DKIMOptions, error) {
	if !cfg.DKIMConfigured() {
		return nil, nil
	}
	key, err := os.ReadFile(cfg.DKIM.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read DKIM private key: %w", err)
	}
	return &mimemsg.DKIMOptions{
		Domain:     cfg.DKIM.Domain,
		Selector:   cfg.DKIM.Selector,
		PrivateKey: key,
	}, nil
}

// newSession wraps prov with the configured mail defaults.
func newSession(cfg *config.Config, prov provider.Provider) (*mailer.Session, error) {
	sess := &mailer.Session{
		Name:     prov.Name(),
		Provider: prov,
		Hostname: cfg.Mail.Hostname,
	}
	if cfg.Mail.From != "" {
		from, err := address.Parse(cfg.Mail.From)
		if err != nil {
			return nil, fmt.Errorf("invalid MAIL_FROM: %w", err)
		}
		sess.DefaultFrom = from
	}
	return sess, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
