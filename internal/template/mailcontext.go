package template

import (
	htmltemplate "html/template"

	"github.com/shineum/mailmessage/internal/email"
)

// MailContextKey is the reserved context key holding the message's MailContext.
const MailContextKey = "mailContext"

// MailContext lets templates look up the message's attachments, e.g.
//
//	<img src="{{ .mailContext.CID "logo" }}">
type MailContext struct {
	attachments map[string]*email.Attachment
}

// NewMailContext indexes atts for template lookups.
func NewMailContext(atts []*email.Attachment) *MailContext {
	return &MailContext{attachments: email.IndexAttachments(atts)}
}

// Attachment returns the attachment registered under id, or nil.
func (c *MailContext) Attachment(id string) *email.Attachment {
	return c.attachments[id]
}

// Has reports whether an attachment is registered under id.
func (c *MailContext) Has(id string) bool {
	_, ok := c.attachments[id]
	return ok
}

// CID returns a cid: URL for the attachment registered under id, or "" when
// there is none. The result is typed so html/template keeps the scheme.
func (c *MailContext) CID(id string) htmltemplate.URL {
	att, ok := c.attachments[id]
	if !ok {
		return ""
	}
	if att.ContentID != "" {
		return htmltemplate.URL("cid:" + att.ContentID)
	}
	return htmltemplate.URL("cid:" + att.FileName)
}
