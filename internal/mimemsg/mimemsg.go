// Package mimemsg encodes an email.Message as an RFC 5322 / MIME document.
//
// The message's RootContentType selects how files are packaged. With a mixed
// (or alternative) root, inline files are embedded next to the bodies and the
// rest are attached in an outer multipart/mixed. With a related root every
// file is embedded, so the document root is multipart/related and ordinary
// attachments keep their attachment disposition inside it.
//
// Calendar invites carry their text/calendar data as one more alternative
// body, and the message is marked with the Exchange Content-Class header.
package mimemsg

import (
	"bytes"
	"fmt"
	"mime"
	"net/mail"
	"strings"

	gomail "github.com/wneessen/go-mail"

	"github.com/shineum/mailmessage/internal/email"
)

// returnReceiptTo is the non-standard delivery receipt header honored by
// several MTAs.
const returnReceiptTo gomail.Header = "Return-Receipt-To"

const (
	contentClass         gomail.Header = "Content-Class"
	calendarContentClass               = "urn:content-classes:calendarmessage"
)

// Build converts msg into a go-mail message ready to be written or sent.
func Build(msg *email.Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()

	if err := setAddrHeader(m, gomail.HeaderFrom, msg.From); err != nil {
		return nil, err
	}
	if err := setAddrHeader(m, gomail.HeaderTo, msg.To); err != nil {
		return nil, err
	}
	if err := setAddrHeader(m, gomail.HeaderCc, msg.Cc); err != nil {
		return nil, err
	}
	if err := setAddrHeader(m, gomail.HeaderBcc, msg.Bcc); err != nil {
		return nil, err
	}
	if len(msg.ReplyTo) > 0 {
		m.SetGenHeader(gomail.HeaderReplyTo, strings.Join(email.FormatAddresses(msg.ReplyTo), ", "))
	}
	if len(msg.ReadReceipt) > 0 {
		m.SetGenHeader(gomail.HeaderDispositionNotificationTo, email.FormatAddresses(msg.ReadReceipt)...)
	}
	if len(msg.DeliveryReceipt) > 0 {
		m.SetGenHeader(returnReceiptTo, email.FormatAddresses(msg.DeliveryReceipt)...)
	}

	m.Subject(msg.Subject)
	m.SetDate()
	if msg.MessageID != "" {
		m.SetMessageIDWithValue(strings.Trim(msg.MessageID, "<>"))
	}
	switch msg.Importance {
	case email.ImportanceHigh:
		m.SetImportance(gomail.ImportanceHigh)
	case email.ImportanceLow:
		m.SetImportance(gomail.ImportanceLow)
	}

	setBody(m, msg)

	invite := msg.Type == email.TypeInviteICal
	if invite {
		m.SetGenHeader(contentClass, calendarContentClass)
	}

	for _, att := range msg.Attachments {
		if invite && isCalendar(att) {
			m.AddAlternativeString(gomail.ContentType(att.MimeType), string(att.Content))
			continue
		}

		name := fileName(att)
		opts := []gomail.FileOption{
			gomail.WithFileContentType(gomail.ContentType(att.MimeType)),
		}
		if att.ContentID != "" {
			opts = append(opts, withContentID(att.ContentID))
		}
		switch {
		case att.Inline():
			m.EmbedReadSeeker(name, bytes.NewReader(att.Content), opts...)
		case msg.RootContentType == email.ContentTypeRelated:
			opts = append(opts, withAttachmentDisposition(name))
			m.EmbedReadSeeker(name, bytes.NewReader(att.Content), opts...)
		default:
			m.AttachReadSeeker(name, bytes.NewReader(att.Content), opts...)
		}
	}

	return m, nil
}

// Render encodes msg to bytes. When dkimOpts is non-nil the result is
// DKIM-signed.
func Render(msg *email.Message, dkimOpts *DKIMOptions) ([]byte, error) {
	m, err := Build(msg)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write message: %w", err)
	}
	raw := buf.Bytes()

	if dkimOpts != nil {
		if err := dkimOpts.sign(&raw); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func setAddrHeader(m *gomail.Msg, h gomail.AddrHeader, list []*mail.Address) error {
	if len(list) == 0 {
		return nil
	}
	if err := m.SetAddrHeader(h, email.FormatAddresses(list)...); err != nil {
		return fmt.Errorf("failed to set %s header: %w", h, err)
	}
	return nil
}

func setBody(m *gomail.Msg, msg *email.Message) {
	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)
	default:
		m.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
	}
}

func fileName(att *email.Attachment) string {
	switch {
	case att.FileName != "":
		return att.FileName
	case att.ContentID != "":
		return att.ContentID
	default:
		return "attachment"
	}
}

// withContentID sets the part's Content-ID so cid: references resolve.
func withContentID(id string) gomail.FileOption {
	return func(f *gomail.File) {
		f.Header.Set("Content-ID", "<"+strings.Trim(id, "<>")+">")
	}
}

// withAttachmentDisposition keeps a file marked as an attachment when it is
// packaged inside multipart/related.
func withAttachmentDisposition(name string) gomail.FileOption {
	return func(f *gomail.File) {
		f.Header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
}

func isCalendar(att *email.Attachment) bool {
	return strings.HasPrefix(strings.ToLower(att.MimeType), "text/calendar")
}
