// Package parser reads RFC 5322 messages with MIME multipart bodies into
// the email.Message model so saved .eml files can be re-sent.
package parser

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/shineum/mailmessage/internal/email"
)

var wordDecoder = new(mime.WordDecoder)

// Parse parses a raw RFC 5322 email message into a Message.
// It handles plain text messages, multipart messages with text/html bodies,
// inline parts, calendar invites and attachments. Unrecognized MIME parts are
// logged as warnings.
func Parse(raw []byte) (*email.Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	result := email.NewMessage(email.ContentTypeMixed)

	result.From = parseAddressList(msg.Header.Get("From"))
	result.ReplyTo = parseAddressList(msg.Header.Get("Reply-To"))
	result.To = parseAddressList(msg.Header.Get("To"))
	result.Cc = parseAddressList(msg.Header.Get("Cc"))
	result.Bcc = parseAddressList(msg.Header.Get("Bcc"))
	result.ReadReceipt = parseAddressList(msg.Header.Get("Disposition-Notification-To"))
	result.DeliveryReceipt = parseAddressList(msg.Header.Get("Return-Receipt-To"))
	result.Subject = decodeHeader(msg.Header.Get("Subject"))
	result.MessageID = strings.Trim(msg.Header.Get("Message-Id"), "<> ")
	result.Importance = parseImportance(msg.Header)

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// If content type is unparseable, treat as plain text
		slog.Warn("failed to parse content type, treating as plain text",
			"content_type", contentType,
			"error", err,
		)
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read message body: %w", readErr)
		}
		result.TextBody = string(body)
		return result, nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message missing boundary")
		}
		if subtype := strings.TrimPrefix(mediaType, "multipart/"); subtype == string(email.ContentTypeRelated) || subtype == string(email.ContentTypeAlternative) {
			result.RootContentType = email.ContentType(subtype)
		}
		if err := parseMultipart(msg.Body, boundary, result); err != nil {
			return nil, fmt.Errorf("failed to parse multipart message: %w", err)
		}
		return result, nil
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	body, err = decodeContent(msg.Header.Get("Content-Transfer-Encoding"), body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message body: %w", err)
	}
	switch mediaType {
	case "text/plain":
		result.TextBody = string(body)
	case "text/html":
		result.HTMLBody = string(body)
	default:
		slog.Warn("unrecognized top-level content type",
			"content_type", mediaType,
		)
		result.TextBody = string(body)
	}

	return result, nil
}

// parseMultipart processes a multipart MIME message body, extracting text/plain,
// text/html parts and attachments.
func parseMultipart(body io.Reader, boundary string, result *email.Message) error {
	reader := multipart.NewReader(body, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		partContentType := part.Header.Get("Content-Type")
		if partContentType == "" {
			partContentType = "text/plain"
		}

		mediaType, params, err := mime.ParseMediaType(partContentType)
		if err != nil {
			slog.Warn("failed to parse part content type, skipping",
				"content_type", partContentType,
				"error", err,
			)
			continue
		}

		contentDisposition := strings.ToLower(part.Header.Get("Content-Disposition"))
		contentID := strings.Trim(part.Header.Get("Content-Id"), "<> ")

		// Check for nested multipart
		if strings.HasPrefix(mediaType, "multipart/") {
			nestedBoundary := params["boundary"]
			if nestedBoundary == "" {
				slog.Warn("nested multipart missing boundary, skipping")
				continue
			}
			if err := parseMultipart(part, nestedBoundary, result); err != nil {
				slog.Warn("failed to parse nested multipart",
					"error", err,
				)
			}
			continue
		}

		content, err := readPartContent(part)
		if err != nil {
			slog.Warn("failed to read part content",
				"content_type", mediaType,
				"error", err,
			)
			continue
		}

		switch {
		case strings.HasPrefix(contentDisposition, "attachment"):
			result.Attachments = append(result.Attachments, email.NewAttachment(
				extractFilename(part, params), mediaType, email.DispositionAttachment, content, contentID))
			continue
		case strings.HasPrefix(contentDisposition, "inline") && contentID != "":
			result.Attachments = append(result.Attachments, email.NewAttachment(
				part.FileName(), mediaType, email.DispositionInline, content, contentID))
			continue
		}

		switch mediaType {
		case "text/plain":
			if result.TextBody == "" {
				result.TextBody = string(content)
			}
		case "text/html":
			if result.HTMLBody == "" {
				result.HTMLBody = string(content)
			}
		case "text/calendar":
			result.Type = email.TypeInviteICal
			result.Attachments = append(result.Attachments, email.NewAttachment(
				part.FileName(), partContentType, email.DispositionInline, content, contentID))
		default:
			// Check if it has a filename even without attachment disposition
			if contentID != "" {
				result.Attachments = append(result.Attachments, email.NewAttachment(
					part.FileName(), mediaType, email.DispositionInline, content, contentID))
			} else if part.FileName() != "" || params["name"] != "" {
				result.Attachments = append(result.Attachments, email.NewAttachment(
					extractFilename(part, params), mediaType, email.DispositionAttachment, content, ""))
			} else {
				slog.Warn("unrecognized MIME part, skipping",
					"content_type", mediaType,
					"disposition", contentDisposition,
				)
			}
		}
	}

	return nil
}

// readPartContent reads the full content of a MIME part, handling
// Content-Transfer-Encoding (base64, quoted-printable).
func readPartContent(part *multipart.Part) ([]byte, error) {
	raw, err := io.ReadAll(part)
	if err != nil {
		return nil, err
	}
	// Go's multipart reader decodes quoted-printable itself and drops the header.
	return decodeContent(part.Header.Get("Content-Transfer-Encoding"), raw)
}

func decodeContent(encoding string, raw []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(string(raw))
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			// Try with RawStdEncoding for unpadded base64
			decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
			if err != nil {
				return nil, fmt.Errorf("failed to decode base64 content: %w", err)
			}
		}
		return decoded, nil
	case "quoted-printable":
		decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode quoted-printable content: %w", err)
		}
		return decoded, nil
	default:
		return raw, nil
	}
}

// extractFilename extracts the filename from a MIME part, checking both
// Content-Disposition and Content-Type parameters.
func extractFilename(part *multipart.Part, params map[string]string) string {
	// Try Content-Disposition filename first (via multipart.Part)
	if fn := part.FileName(); fn != "" {
		return fn
	}
	// Fall back to Content-Type "name" parameter
	if name, ok := params["name"]; ok && name != "" {
		return name
	}
	// Generate fallback name from media type so providers that require a name accept it
	if mediaType, _, err := mime.ParseMediaType(part.Header.Get("Content-Type")); err == nil {
		parts := strings.SplitN(mediaType, "/", 2)
		if len(parts) == 2 {
			return "attachment." + parts[1]
		}
	}
	return "attachment"
}

// parseAddressList parses an RFC 5322 address list. Entries that do not
// parse as a list are retried one by one and skipped when still invalid.
func parseAddressList(raw string) []*mail.Address {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	addresses, err := mail.ParseAddressList(raw)
	if err == nil {
		return addresses
	}

	var result []*mail.Address
	for _, p := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		addr, err := mail.ParseAddress(trimmed)
		if err != nil {
			slog.Warn("skipping unparseable address", "address", trimmed, "error", err)
			continue
		}
		result = append(result, addr)
	}
	return result
}

func decodeHeader(v string) string {
	decoded, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

// parseImportance reads Importance, falling back to X-Priority (1-2 high, 4-5 low).
func parseImportance(h mail.Header) email.Importance {
	switch strings.ToLower(strings.TrimSpace(h.Get("Importance"))) {
	case "high":
		return email.ImportanceHigh
	case "low":
		return email.ImportanceLow
	}
	prio := strings.TrimSpace(h.Get("X-Priority"))
	if prio == "" {
		return email.ImportanceNormal
	}
	switch prio[0] {
	case '1', '2':
		return email.ImportanceHigh
	case '4', '5':
		return email.ImportanceLow
	default:
		return email.ImportanceNormal
	}
}
