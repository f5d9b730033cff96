// Package email defines the message data model shared by the builder,
// the MIME encoder and the delivery providers.
package email

import "net/mail"

// MessageType distinguishes plain messages from calendar invites.
type MessageType int

const (
	// TypeStandard is a regular message.
	TypeStandard MessageType = iota
	// TypeInviteICal is a calendar invite carrying a text/calendar part.
	TypeInviteICal
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case TypeInviteICal:
		return "invite_ical"
	default:
		return "standard"
	}
}

// ContentType is the root multipart subtype used when the message is packaged.
type ContentType string

const (
	ContentTypeMixed       ContentType = "mixed"
	ContentTypeRelated     ContentType = "related"
	ContentTypeAlternative ContentType = "alternative"
)

// Importance is the message priority advertised to the recipient's client.
type Importance int

const (
	ImportanceNormal Importance = iota
	ImportanceLow
	ImportanceHigh
)

// String returns the header value for the importance level.
func (i Importance) String() string {
	switch i {
	case ImportanceLow:
		return "low"
	case ImportanceHigh:
		return "high"
	default:
		return "normal"
	}
}

// Message represents an outgoing email message with all its components.
// Address lists only grow while a message is built; duplicates are kept.
type Message struct {
	From            []*mail.Address
	ReplyTo         []*mail.Address
	To              []*mail.Address
	Cc              []*mail.Address
	Bcc             []*mail.Address
	DeliveryReceipt []*mail.Address
	ReadReceipt     []*mail.Address
	Subject         string
	TextBody        string
	HTMLBody        string
	Importance      Importance
	MessageID       string
	Attachments     []*Attachment
	Type            MessageType
	RootContentType ContentType
}

// NewMessage creates an empty message packaged under the given root content type.
// An empty root defaults to ContentTypeMixed.
func NewMessage(root ContentType) *Message {
	if root == "" {
		root = ContentTypeMixed
	}
	return &Message{
		Type:            TypeStandard,
		RootContentType: root,
	}
}

// Recipients returns the bare addresses of all To, Cc and Bcc recipients in order.
func (m *Message) Recipients() []string {
	rcpts := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	rcpts = append(rcpts, Addresses(m.To)...)
	rcpts = append(rcpts, Addresses(m.Cc)...)
	rcpts = append(rcpts, Addresses(m.Bcc)...)
	return rcpts
}

// Sender returns the first From address, or nil if none is set.
func (m *Message) Sender() *mail.Address {
	if len(m.From) == 0 {
		return nil
	}
	return m.From[0]
}

// Addresses returns the bare addr-spec of each address.
func Addresses(list []*mail.Address) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Address)
	}
	return out
}

// FormatAddresses returns each address formatted for a header ("Name <addr>").
func FormatAddresses(list []*mail.Address) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.String())
	}
	return out
}
