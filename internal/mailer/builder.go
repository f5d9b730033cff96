package mailer

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/mail"

	"github.com/shineum/mailmessage/internal/address"
	"github.com/shineum/mailmessage/internal/email"
	"github.com/shineum/mailmessage/internal/template"
)

// ICalContentType and ICalContentID describe the part added by Builder.ICal.
const (
	ICalContentType = "text/calendar;method=CANCEL"
	ICalContentID   = "urn:content-classes:calendarmessage"
)

// Builder accumulates the fields of one outgoing message and sends it.
//
// Methods mutate the builder and return it so calls can be chained. The first
// invalid address is recorded; after that every mutating call is a no-op and
// Err, MergeTemplates and Send return the recorded error.
//
// A Builder is meant for a single goroutine: build, send, discard.
type Builder struct {
	msg *email.Message

	// A literal field and its template are kept apart. Merging only
	// overwrites the literal when the template is set.
	subjectTmpl template.Template
	textTmpl    template.Template
	htmlTmpl    template.Template

	ctx    template.Context
	merged bool
	err    error

	transport Transport
	sessions  SessionProvider
}

type builderOptions struct {
	root      email.ContentType
	transport Transport
	sessions  SessionProvider
	logger    *slog.Logger
}

// Option configures a Builder.
type Option func(*builderOptions)

// WithRootContentType sets how parts are packaged downstream (mixed, related...).
func WithRootContentType(ct email.ContentType) Option {
	return func(o *builderOptions) { o.root = ct }
}

// WithTransport replaces the default Dispatcher.
func WithTransport(t Transport) Option {
	return func(o *builderOptions) { o.transport = t }
}

// WithSessionProvider sets where Send finds its session.
func WithSessionProvider(sp SessionProvider) Option {
	return func(o *builderOptions) { o.sessions = sp }
}

// WithLogger sets the logger of the default Dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(o *builderOptions) { o.logger = l }
}

// NewBuilder creates a builder for one message.
func NewBuilder(opts ...Option) *Builder {
	var o builderOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = NewDispatcher(o.logger)
	}
	return &Builder{
		msg:       email.NewMessage(o.root),
		ctx:       make(template.Context),
		transport: o.transport,
		sessions:  o.sessions,
	}
}

// Err returns the first error recorded while building.
func (b *Builder) Err() error {
	return b.err
}

// Message returns the message being built.
func (b *Builder) Message() *email.Message {
	return b.msg
}

// Context returns a copy of the template context.
func (b *Builder) Context() template.Context {
	return maps.Clone(b.ctx)
}

// From appends sender addresses.
func (b *Builder) From(rs ...address.Recipient) *Builder {
	return b.addAddresses(&b.msg.From, rs)
}

// ReplyTo appends Reply-To addresses.
func (b *Builder) ReplyTo(rs ...address.Recipient) *Builder {
	return b.addAddresses(&b.msg.ReplyTo, rs)
}

// To appends primary recipients.
func (b *Builder) To(rs ...address.Recipient) *Builder {
	return b.addAddresses(&b.msg.To, rs)
}

// Cc appends carbon copy recipients.
func (b *Builder) Cc(rs ...address.Recipient) *Builder {
	return b.addAddresses(&b.msg.Cc, rs)
}

// Bcc appends blind carbon copy recipients.
func (b *Builder) Bcc(rs ...address.Recipient) *Builder {
	return b.addAddresses(&b.msg.Bcc, rs)
}

// DeliveryReceipt requests a delivery receipt to the given addresses.
func (b *Builder) DeliveryReceipt(rs ...address.Recipient) *Builder {
	return b.addAddresses(&b.msg.DeliveryReceipt, rs)
}

// ReadReceipt requests a read receipt (MDN) to the given addresses.
func (b *Builder) ReadReceipt(rs ...address.Recipient) *Builder {
	return b.addAddresses(&b.msg.ReadReceipt, rs)
}

func (b *Builder) addAddresses(list *[]*mail.Address, rs []address.Recipient) *Builder {
	if b.err != nil {
		return b
	}
	addrs, err := address.ResolveAll(rs...)
	if err != nil {
		b.err = err
		return b
	}
	*list = append(*list, addrs...)
	return b
}

// Subject sets the literal subject.
func (b *Builder) Subject(s string) *Builder {
	if b.err == nil {
		b.msg.Subject = s
	}
	return b
}

// SubjectTemplate sets a subject rendered at merge time.
func (b *Builder) SubjectTemplate(t template.Template) *Builder {
	if b.err == nil {
		b.subjectTmpl = t
	}
	return b
}

// TextBody sets the literal plain text body.
func (b *Builder) TextBody(text string) *Builder {
	if b.err == nil {
		b.msg.TextBody = text
	}
	return b
}

// HTMLBody sets the literal HTML body.
func (b *Builder) HTMLBody(html string) *Builder {
	if b.err == nil {
		b.msg.HTMLBody = html
	}
	return b
}

// HTMLBodyTextAlt sets an HTML body with a plain text alternative.
func (b *Builder) HTMLBodyTextAlt(html, text string) *Builder {
	return b.TextBody(text).HTMLBody(html)
}

// BodyText sets a plain text body rendered at merge time.
func (b *Builder) BodyText(t template.Template) *Builder {
	if b.err == nil {
		b.textTmpl = t
	}
	return b
}

// BodyHTML sets an HTML body rendered at merge time.
func (b *Builder) BodyHTML(t template.Template) *Builder {
	if b.err == nil {
		b.htmlTmpl = t
	}
	return b
}

// BodyHTMLTextAlt sets both body templates.
func (b *Builder) BodyHTMLTextAlt(html, text template.Template) *Builder {
	return b.BodyHTML(html).BodyText(text)
}

// Importance sets the message priority.
func (b *Builder) Importance(i email.Importance) *Builder {
	if b.err == nil {
		b.msg.Importance = i
	}
	return b
}

// MessageID sets an explicit Message-ID instead of a generated one.
func (b *Builder) MessageID(id string) *Builder {
	if b.err == nil {
		b.msg.MessageID = id
	}
	return b
}

// MessageType marks the message as standard or as a calendar invite.
func (b *Builder) MessageType(t email.MessageType) *Builder {
	if b.err == nil {
		b.msg.Type = t
	}
	return b
}

// RootContentType changes how parts are packaged, overriding the value given
// with WithRootContentType. An empty value is ignored.
func (b *Builder) RootContentType(ct email.ContentType) *Builder {
	if b.err == nil && ct != "" {
		b.msg.RootContentType = ct
	}
	return b
}

// AddAttachment appends attachments. Nil entries are ignored.
func (b *Builder) AddAttachment(atts ...*email.Attachment) *Builder {
	if b.err != nil {
		return b
	}
	for _, att := range atts {
		if att != nil {
			b.msg.Attachments = append(b.msg.Attachments, att)
		}
	}
	return b
}

// ICal turns the message into a calendar invite: html becomes the HTML body
// and data is attached inline as a text/calendar part.
func (b *Builder) ICal(html string, data []byte) *Builder {
	if b.err != nil {
		return b
	}
	b.msg.Type = email.TypeInviteICal
	b.msg.HTMLBody = html
	b.msg.Attachments = append(b.msg.Attachments,
		email.NewAttachment("", ICalContentType, email.DispositionInline, data, ICalContentID))
	return b
}

// Put sets a template variable, replacing any previous value for key.
func (b *Builder) Put(key string, value any) *Builder {
	if b.err == nil {
		b.ctx[key] = value
	}
	return b
}

// MergeTemplates renders every template that is set into its literal field.
// The context gains a MailContext under template.MailContextKey indexing the
// current attachments. Calling it again with an unchanged context yields the
// same fields. When a template fails no field is changed.
func (b *Builder) MergeTemplates() error {
	if b.err != nil {
		return b.err
	}

	b.ctx[template.MailContextKey] = template.NewMailContext(b.msg.Attachments)

	slots := []struct {
		tmpl template.Template
		dst  *string
	}{
		{b.subjectTmpl, &b.msg.Subject},
		{b.textTmpl, &b.msg.TextBody},
		{b.htmlTmpl, &b.msg.HTMLBody},
	}
	rendered := make([]string, len(slots))
	for i, s := range slots {
		if s.tmpl == nil {
			continue
		}
		out, err := s.tmpl.Merge(b.ctx)
		if err != nil {
			return err
		}
		rendered[i] = out
	}
	// Fields change only once every template rendered.
	for i, s := range slots {
		if s.tmpl != nil {
			*s.dst = rendered[i]
		}
	}

	b.merged = true
	return nil
}

// SendWith merges templates unless that already happened and delivers the
// message through sess. It returns the finished message.
func (b *Builder) SendWith(ctx context.Context, sess *Session) (*email.Message, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.merged {
		if err := b.MergeTemplates(); err != nil {
			return nil, err
		}
	}
	if err := b.transport.Send(ctx, b.msg, sess); err != nil {
		return nil, err
	}
	return b.msg, nil
}

// Send resolves the session from the configured SessionProvider and calls
// SendWith. Without a session it fails with ErrNoSessionAvailable before
// touching the message.
func (b *Builder) Send(ctx context.Context) (*email.Message, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.sessions == nil {
		return nil, ErrNoSessionAvailable
	}
	sess, err := b.sessions.Session(ctx)
	if err != nil {
		return nil, errors.Join(ErrNoSessionAvailable, err)
	}
	if sess == nil {
		return nil, ErrNoSessionAvailable
	}
	return b.SendWith(ctx, sess)
}
