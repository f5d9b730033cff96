package main

import (
	"context"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/shineum/mailmessage/internal/address"
	"github.com/shineum/mailmessage/internal/attachment"
	"github.com/shineum/mailmessage/internal/config"
	"github.com/shineum/mailmessage/internal/email"
	"github.com/shineum/mailmessage/internal/mailer"
	"github.com/shineum/mailmessage/internal/parser"
	"github.com/shineum/mailmessage/internal/template"
)

// composeOptions is the message described on the command line.
type composeOptions struct {
	from, replyTo, to, cc, bcc listFlag

	subject, text, html string

	subjectTemplate string
	textTemplate    string
	htmlTemplate    string
	vars            listFlag

	attach, inline listFlag
	ical           string
	importance     string
	root           string
	eml            string
}

// attachmentLoader resolves an attachment reference.
type attachmentLoader interface {
	LoadURI(ctx context.Context, uri string, disposition email.Disposition) (*email.Attachment, error)
}

// compose turns opts into a builder ready to send. A saved message given with
// -eml is loaded first and the other flags add to it. The root content type
// comes from -root when set, else from the saved message, else mixed.
func compose(ctx context.Context, cfg *config.Config, m *mailer.Mailer, opts *composeOptions) (*mailer.Builder, error) {
	b := m.Message()

	if opts.eml != "" {
		if err := importMessage(b, opts.eml); err != nil {
			return nil, err
		}
	}
	if opts.root != "" {
		root, err := parseRoot(opts.root)
		if err != nil {
			return nil, err
		}
		b.RootContentType(root)
	}

	b.From(recipients(opts.from)...).
		ReplyTo(recipients(opts.replyTo)...).
		To(recipients(opts.to)...).
		Cc(recipients(opts.cc)...).
		Bcc(recipients(opts.bcc)...)

	if opts.subject != "" {
		b.Subject(opts.subject)
	}
	if opts.text != "" {
		b.TextBody(opts.text)
	}
	if opts.html != "" {
		b.HTMLBody(opts.html)
	}

	for _, slot := range []struct {
		path string
		set  func(template.Template) *mailer.Builder
	}{
		{opts.subjectTemplate, b.SubjectTemplate},
		{opts.textTemplate, b.BodyText},
		{opts.htmlTemplate, b.BodyHTML},
	} {
		if slot.path == "" {
			continue
		}
		tmpl, err := loadTemplate(slot.path)
		if err != nil {
			return nil, err
		}
		slot.set(tmpl)
	}

	for _, kv := range opts.vars {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid -set %q, expected key=value", kv)
		}
		b.Put(key, value)
	}

	if opts.importance != "" {
		imp, err := parseImportance(opts.importance)
		if err != nil {
			return nil, err
		}
		b.Importance(imp)
	}

	var s3 attachmentLoader
	load := func(ref string, disposition email.Disposition) (*email.Attachment, error) {
		if !attachment.IsS3URI(ref) {
			return attachment.FromFile(ref, disposition)
		}
		if s3 == nil {
			loader, err := attachment.NewS3Loader(ctx, attachment.S3Config{
				Region:          cfg.S3.Region,
				AccessKeyID:     cfg.S3.AccessKeyID,
				SecretAccessKey: cfg.S3.SecretAccessKey,
				Endpoint:        cfg.S3.Endpoint,
				PathStyle:       cfg.S3.PathStyle,
			})
			if err != nil {
				return nil, err
			}
			s3 = loader
		}
		return s3.LoadURI(ctx, ref, disposition)
	}
	if err := addAttachments(b, load, opts.attach, email.DispositionAttachment); err != nil {
		return nil, err
	}
	if err := addAttachments(b, load, opts.inline, email.DispositionInline); err != nil {
		return nil, err
	}

	if opts.ical != "" {
		data, err := os.ReadFile(opts.ical)
		if err != nil {
			return nil, fmt.Errorf("failed to read calendar file: %w", err)
		}
		html := opts.html
		if html == "" {
			html = b.Message().HTMLBody
		}
		b.ICal(html, data)
	}

	if err := b.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

func addAttachments(b *mailer.Builder, load func(string, email.Disposition) (*email.Attachment, error), refs []string, disposition email.Disposition) error {
	for _, ref := range refs {
		att, err := load(ref, disposition)
		if err != nil {
			return fmt.Errorf("attachment %s: %w", ref, err)
		}
		b.AddAttachment(att)
	}
	return nil
}

// importMessage copies a saved message into b.
func importMessage(b *mailer.Builder, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read message file: %w", err)
	}
	msg, err := parser.Parse(raw)
	if err != nil {
		return err
	}

	b.From(wrap(msg.From)...).
		ReplyTo(wrap(msg.ReplyTo)...).
		To(wrap(msg.To)...).
		Cc(wrap(msg.Cc)...).
		Bcc(wrap(msg.Bcc)...).
		DeliveryReceipt(wrap(msg.DeliveryReceipt)...).
		ReadReceipt(wrap(msg.ReadReceipt)...).
		Subject(msg.Subject).
		TextBody(msg.TextBody).
		HTMLBody(msg.HTMLBody).
		Importance(msg.Importance).
		AddAttachment(msg.Attachments...).
		MessageType(msg.Type).
		RootContentType(msg.RootContentType)
	return b.Err()
}

func loadTemplate(path string) (template.Template, error) {
	return template.LoadFS(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

func recipients(raw []string) []address.Recipient {
	out := make([]address.Recipient, 0, len(raw))
	for _, r := range raw {
		out = append(out, address.Raw(r))
	}
	return out
}

func wrap(list []*mail.Address) []address.Recipient {
	out := make([]address.Recipient, 0, len(list))
	for _, a := range list {
		out = append(out, address.Address(a))
	}
	return out
}

func parseImportance(s string) (email.Importance, error) {
	switch strings.ToLower(s) {
	case "low":
		return email.ImportanceLow, nil
	case "normal":
		return email.ImportanceNormal, nil
	case "high":
		return email.ImportanceHigh, nil
	default:
		return email.ImportanceNormal, fmt.Errorf("invalid importance %q", s)
	}
}

func parseRoot(s string) (email.ContentType, error) {
	switch ct := email.ContentType(strings.ToLower(s)); ct {
	case email.ContentTypeMixed, email.ContentTypeRelated, email.ContentTypeAlternative:
		return ct, nil
	default:
		return "", fmt.Errorf("invalid root content type %q", s)
	}
}
