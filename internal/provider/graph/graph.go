package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shineum/mailmessage/internal/email"
)

// GraphProviderConfig holds the configuration for creating a GraphProvider.
type GraphProviderConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// Sender is the mailbox used when a message carries no From address.
	Sender string
}

const (
	defaultBaseURL = "https://graph.microsoft.com/v1.0"

	// maxRetries is the maximum number of retry attempts for transient failures.
	maxRetries = 3

	// baseRetryDelay is the initial delay for exponential backoff.
	baseRetryDelay = 1 * time.Second
)

// GraphProvider sends emails through the sendMail action of the sending
// user's mailbox, authenticated with OAuth2 client credentials.
type GraphProvider struct {
	sender     string
	baseURL    string
	httpClient *http.Client
	token      *tokenCache
}

// New creates a new GraphProvider with the given configuration.
func New(cfg GraphProviderConfig) *GraphProvider {
	tokenURL := fmt.Sprintf(
		"https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		url.PathEscape(cfg.TenantID),
	)
	return newWithOverrides(cfg, defaultBaseURL, tokenURL, &http.Client{Timeout: 30 * time.Second})
}

// newWithOverrides creates a GraphProvider with custom endpoints and HTTP
// client, used for testing.
func newWithOverrides(cfg GraphProviderConfig, baseURL, tokenURL string, client *http.Client) *GraphProvider {
	return &GraphProvider{
		sender:     cfg.Sender,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
		token:      newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// Name returns the provider name.
func (g *GraphProvider) Name() string {
	return "msgraph"
}

// Send posts msg to the sendMail action of the mailbox named by its first
// From address, or of the configured sender when it has none. Throttled and
// server-side failures are retried with backoff; a 401 triggers one token
// refresh.
func (g *GraphProvider) Send(ctx context.Context, msg *email.Message) error {
	mailbox := g.mailbox(msg)
	if mailbox == "" {
		return errors.New("graph: no sending mailbox, set a From address or a configured sender")
	}

	payload, err := json.Marshal(buildSendMailRequest(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	endpoint := g.sendMailURL(mailbox)

	refreshed := false
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := g.post(ctx, endpoint, payload)
		if err == nil {
			slog.Debug("Graph API accepted message",
				"mailbox", mailbox,
				"message_id", msg.MessageID,
				"attempts", attempt+1,
			)
			return nil
		}
		lastErr = err

		var sendErr *sendError
		if !errors.As(err, &sendErr) {
			return err
		}

		if sendErr.kind == failUnauthorized {
			if refreshed {
				return sendErr
			}
			slog.Info("refreshing Graph API token after 401", "mailbox", mailbox)
			if _, err := g.token.ForceRefresh(); err != nil {
				return fmt.Errorf("token refresh failed: %w", err)
			}
			refreshed = true
			continue
		}

		delay, retry := sendErr.retryDelay(attempt)
		if !retry || attempt == maxRetries {
			return sendErr
		}
		slog.Info("Graph API request failed, retrying",
			"mailbox", mailbox,
			"status", sendErr.statusCode,
			"code", sendErr.code,
			"attempt", attempt+1,
			"delay", delay,
		)
		if err := sleepWithContext(ctx, delay); err != nil {
			return fmt.Errorf("context cancelled during retry wait: %w", err)
		}
	}

	return fmt.Errorf("Graph API request failed after %d retries: %w", maxRetries, lastErr)
}

// mailbox returns the user principal the message is sent from.
func (g *GraphProvider) mailbox(msg *email.Message) string {
	if from := msg.Sender(); from != nil && from.Address != "" {
		return from.Address
	}
	return g.sender
}

func (g *GraphProvider) sendMailURL(mailbox string) string {
	return g.baseURL + "/users/" + url.PathEscape(mailbox) + "/sendMail"
}

// post performs a single sendMail call.
func (g *GraphProvider) post(ctx context.Context, endpoint string, payload []byte) error {
	token, err := g.token.Token()
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &sendError{kind: failTransient, message: err.Error()}
	}
	defer resp.Body.Close()

	// sendMail answers 202 Accepted
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return newSendError(resp.StatusCode, resp.Header.Get("Retry-After"), body, time.Now())
}

// failureKind decides how Send reacts to a failed call.
type failureKind int

const (
	failPermanent failureKind = iota
	failUnauthorized
	failThrottled
	failTransient
)

func (k failureKind) String() string {
	switch k {
	case failUnauthorized:
		return "unauthorized"
	case failThrottled:
		return "throttled"
	case failTransient:
		return "transient"
	default:
		return "permanent"
	}
}

// sendError is a failed sendMail call.
type sendError struct {
	kind       failureKind
	statusCode int
	code       string
	message    string
	// retryAfter is the server-requested wait, zero when absent.
	retryAfter time.Duration
}

func (e *sendError) Error() string {
	if e.statusCode == 0 {
		return fmt.Sprintf("Graph API request failed (%s): %s", e.kind, e.message)
	}
	if e.code != "" {
		return fmt.Sprintf("Graph API error (HTTP %d, %s): %s", e.statusCode, e.code, e.message)
	}
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.statusCode, e.message)
}

// Temporary reports whether repeating the call may succeed.
func (e *sendError) Temporary() bool {
	return e.kind != failPermanent
}

// retryDelay returns how long to wait before the next attempt and whether to
// retry at all.
func (e *sendError) retryDelay(attempt int) (time.Duration, bool) {
	switch e.kind {
	case failThrottled:
		if e.retryAfter > 0 {
			return e.retryAfter, true
		}
		return backoffDelay(attempt), true
	case failTransient:
		return backoffDelay(attempt), true
	default:
		return 0, false
	}
}

// newSendError classifies an error response. The Graph error envelope is
// used for code and message when present, the raw body otherwise.
func newSendError(statusCode int, retryAfter string, body []byte, now time.Time) *sendError {
	e := &sendError{
		kind:       classifyStatus(statusCode),
		statusCode: statusCode,
		message:    strings.TrimSpace(string(body)),
		retryAfter: parseRetryAfter(retryAfter, now),
	}
	var envelope graphErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		e.code = envelope.Error.Code
		e.message = envelope.Error.Message
	}
	return e
}

func classifyStatus(statusCode int) failureKind {
	switch {
	case statusCode == http.StatusUnauthorized:
		return failUnauthorized
	case statusCode == http.StatusTooManyRequests:
		return failThrottled
	case statusCode == http.StatusRequestTimeout || statusCode >= 500:
		return failTransient
	default:
		return failPermanent
	}
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// backoffDelay doubles baseRetryDelay per attempt: 1s, 2s, 4s.
func backoffDelay(attempt int) time.Duration {
	return baseRetryDelay << attempt
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
