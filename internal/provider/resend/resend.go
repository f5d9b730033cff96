// Package resend implements a Provider that sends emails via the Resend API.
package resend

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v3"

	"github.com/shineum/mailmessage/internal/email"
)

// ResendProviderConfig holds the configuration for creating a ResendProvider.
type ResendProviderConfig struct {
	APIKey string
	// Sender is used when a message carries no From address.
	Sender     string
	SenderName string
}

// EmailsAPI is the subset of the Resend emails service used by the provider.
type EmailsAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendProvider sends emails via the Resend HTTP API.
type ResendProvider struct {
	sender string
	emails EmailsAPI
}

// New creates a new ResendProvider with the given configuration.
func New(cfg ResendProviderConfig) *ResendProvider {
	client := resend.NewClient(cfg.APIKey)
	return NewWithClient(senderAddress(cfg), client.Emails)
}

// NewWithClient creates a ResendProvider with a custom emails client, used for testing.
func NewWithClient(sender string, emails EmailsAPI) *ResendProvider {
	return &ResendProvider{sender: sender, emails: emails}
}

func senderAddress(cfg ResendProviderConfig) string {
	if cfg.SenderName != "" && cfg.Sender != "" {
		return fmt.Sprintf("%s <%s>", cfg.SenderName, cfg.Sender)
	}
	return cfg.Sender
}

// Send delivers an email message via Resend.
func (p *ResendProvider) Send(ctx context.Context, msg *email.Message) error {
	req := buildRequest(msg)
	if req.From == "" {
		req.From = p.sender
	}

	resp, err := p.emails.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}
	if resp != nil && resp.Id == "" {
		return fmt.Errorf("resend: empty message id in response")
	}
	return nil
}

// Name returns the provider name.
func (p *ResendProvider) Name() string {
	return "resend"
}

// buildRequest converts an email.Message into a Resend send request.
// Resend accepts a single Reply-To; the first one is used.
func buildRequest(msg *email.Message) *resend.SendEmailRequest {
	req := &resend.SendEmailRequest{
		To:      email.FormatAddresses(msg.To),
		Cc:      email.FormatAddresses(msg.Cc),
		Bcc:     email.FormatAddresses(msg.Bcc),
		Subject: msg.Subject,
		Html:    msg.HTMLBody,
		Text:    msg.TextBody,
	}
	if from := msg.Sender(); from != nil {
		req.From = from.String()
	}
	if len(msg.ReplyTo) > 0 {
		req.ReplyTo = msg.ReplyTo[0].String()
	}

	headers := make(map[string]string)
	if msg.MessageID != "" {
		headers["Message-ID"] = "<" + strings.Trim(msg.MessageID, "<>") + ">"
	}
	if len(msg.ReadReceipt) > 0 {
		headers["Disposition-Notification-To"] = strings.Join(email.FormatAddresses(msg.ReadReceipt), ", ")
	}
	if len(msg.DeliveryReceipt) > 0 {
		headers["Return-Receipt-To"] = strings.Join(email.FormatAddresses(msg.DeliveryReceipt), ", ")
	}
	switch msg.Importance {
	case email.ImportanceHigh:
		headers["Importance"] = "High"
		headers["X-Priority"] = "1"
	case email.ImportanceLow:
		headers["Importance"] = "Low"
		headers["X-Priority"] = "5"
	}
	if len(headers) > 0 {
		req.Headers = headers
	}

	if len(msg.Attachments) > 0 {
		req.Attachments = make([]*resend.Attachment, len(msg.Attachments))
		for i, a := range msg.Attachments {
			name := a.FileName
			if name == "" {
				name = a.ContentID
			}
			req.Attachments[i] = &resend.Attachment{
				Filename:    name,
				Content:     a.Content,
				ContentType: a.MimeType,
				ContentId:   a.ContentID,
			}
		}
	}
	return req
}
