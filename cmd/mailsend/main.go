// Package main is the entry point for the mailsend command, which builds one
// message from flags and delivers it through the configured provider.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shineum/mailmessage/internal/config"
	"github.com/shineum/mailmessage/internal/mailer"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")

	var opts composeOptions
	flag.Var(&opts.from, "from", "sender address (repeatable)")
	flag.Var(&opts.replyTo, "reply-to", "Reply-To address (repeatable)")
	flag.Var(&opts.to, "to", "recipient address (repeatable)")
	flag.Var(&opts.cc, "cc", "Cc address (repeatable)")
	flag.Var(&opts.bcc, "bcc", "Bcc address (repeatable)")
	flag.StringVar(&opts.subject, "subject", "", "literal subject")
	flag.StringVar(&opts.text, "text", "", "literal plain text body")
	flag.StringVar(&opts.html, "html", "", "literal HTML body")
	flag.StringVar(&opts.subjectTemplate, "subject-template", "", "subject template file")
	flag.StringVar(&opts.textTemplate, "text-template", "", "plain text body template file")
	flag.StringVar(&opts.htmlTemplate, "html-template", "", "HTML body template file (.html or .md)")
	flag.Var(&opts.vars, "set", "template variable as key=value (repeatable)")
	flag.Var(&opts.attach, "attach", "file path or s3://bucket/key to attach (repeatable)")
	flag.Var(&opts.inline, "inline", "file path or s3://bucket/key to embed inline (repeatable)")
	flag.StringVar(&opts.ical, "ical", "", "iCalendar file sent as a calendar invite")
	flag.StringVar(&opts.importance, "importance", "", "low, normal or high")
	flag.StringVar(&opts.root, "root", "", "root multipart type: mixed, related or alternative")
	flag.StringVar(&opts.eml, "eml", "", "saved RFC 5322 message to re-send")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, &opts); err != nil {
		slog.Error("send failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts *composeOptions) error {
	prov, err := selectProvider(ctx, cfg)
	if err != nil {
		return err
	}

	sess, err := newSession(cfg, prov)
	if err != nil {
		return err
	}

	m := mailer.New(mailer.StaticSession(sess), slog.Default())

	b, err := compose(ctx, cfg, m, opts)
	if err != nil {
		return err
	}

	msg, err := b.Send(ctx)
	if err != nil {
		return err
	}

	slog.Info("message sent",
		"provider", prov.Name(),
		"message_id", msg.MessageID,
		"recipients", len(msg.Recipients()),
	)
	return nil
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level. Logs go to stderr so the stdout provider output stays clean.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
