// Package ses implements a Provider that sends emails via AWS SES v2.
package ses

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/mailmessage/internal/email"
	"github.com/shineum/mailmessage/internal/mimemsg"
)

// maxRetries is the maximum number of retry attempts for transient failures.
const maxRetries = 3

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 1 * time.Second

// SESProviderConfig holds the configuration for creating a SESProvider.
type SESProviderConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Sender is used when a message carries no From address.
	Sender string
	// DKIM, when set, forces raw MIME delivery with a DKIM signature.
	DKIM *mimemsg.DKIMOptions
}

// SESProvider sends emails via the AWS SES v2 API.
type SESProvider struct {
	sender string
	dkim   *mimemsg.DKIMOptions
	client SendEmailAPI
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new SESProvider with the given configuration.
func New(ctx context.Context, cfg SESProviderConfig) (*SESProvider, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESProvider{
		sender: cfg.Sender,
		dkim:   cfg.DKIM,
		client: sesv2.NewFromConfig(awsCfg),
	}, nil
}

// NewWithClient creates a SESProvider with a custom client, used for testing.
func NewWithClient(sender string, dkim *mimemsg.DKIMOptions, client SendEmailAPI) *SESProvider {
	return &SESProvider{
		sender: sender,
		dkim:   dkim,
		client: client,
	}
}

// Send delivers an email message via AWS SES v2.
// Messages with attachments, receipts, custom importance or a DKIM
// configuration are sent as raw MIME; everything else uses the simple format.
func (s *SESProvider) Send(ctx context.Context, msg *email.Message) error {
	if len(msg.From) == 0 && s.sender != "" {
		withSender := *msg
		withSender.From = []*mail.Address{{Address: s.sender}}
		msg = &withSender
	}

	var input *sesv2.SendEmailInput
	if s.needsRaw(msg) {
		raw, err := mimemsg.Render(msg, s.dkim)
		if err != nil {
			return fmt.Errorf("failed to build raw message: %w", err)
		}
		input = &sesv2.SendEmailInput{
			Destination: &types.Destination{
				ToAddresses:  email.Addresses(msg.To),
				CcAddresses:  email.Addresses(msg.Cc),
				BccAddresses: email.Addresses(msg.Bcc),
			},
			Content: &types.EmailContent{
				Raw: &types.RawMessage{
					Data: raw,
				},
			},
		}
	} else {
		input = buildSimpleInput(msg)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying SES API request",
				"attempt", attempt,
				"max_retries", maxRetries,
			)
			delay := backoffDelay(attempt)
			if err := sleepWithContext(ctx, delay); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		}

		_, err := s.client.SendEmail(ctx, input)
		if err == nil {
			return nil
		}

		lastErr = err
		slog.Warn("SES API error",
			"attempt", attempt,
			"error", err,
		)
	}

	return fmt.Errorf("SES API request failed after %d retries: %w", maxRetries, lastErr)
}

// Name returns the provider name.
func (s *SESProvider) Name() string {
	return "ses"
}

func (s *SESProvider) needsRaw(msg *email.Message) bool {
	return s.dkim != nil ||
		len(msg.Attachments) > 0 ||
		len(msg.ReadReceipt) > 0 ||
		len(msg.DeliveryReceipt) > 0 ||
		msg.Importance != email.ImportanceNormal
}

// buildSimpleInput creates a SES SendEmailInput for emails without attachments.
func buildSimpleInput(msg *email.Message) *sesv2.SendEmailInput {
	body := &types.Body{}

	if msg.HTMLBody != "" {
		body.Html = &types.Content{
			Data:    aws.String(msg.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}
	if msg.TextBody != "" {
		body.Text = &types.Content{
			Data:    aws.String(msg.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}

	dest := &types.Destination{
		ToAddresses:  email.FormatAddresses(msg.To),
		CcAddresses:  email.FormatAddresses(msg.Cc),
		BccAddresses: email.FormatAddresses(msg.Bcc),
	}

	input := &sesv2.SendEmailInput{
		Destination: dest,
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: body,
			},
		},
	}
	if from := msg.Sender(); from != nil {
		input.FromEmailAddress = aws.String(from.String())
	}
	if len(msg.ReplyTo) > 0 {
		input.ReplyToAddresses = email.FormatAddresses(msg.ReplyTo)
	}
	return input
}

// backoffDelay returns the exponential backoff delay for the given attempt number.
func backoffDelay(attempt int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
