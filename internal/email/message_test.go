package email

import (
	"net/mail"
	"reflect"
	"testing"
)

func TestNewMessage_Defaults(t *testing.T) {
	t.Parallel()

	msg := NewMessage("")
	if msg.RootContentType != ContentTypeMixed {
		t.Errorf("RootContentType: got %q, want %q", msg.RootContentType, ContentTypeMixed)
	}
	if msg.Type != TypeStandard {
		t.Errorf("Type: got %v, want %v", msg.Type, TypeStandard)
	}

	related := NewMessage(ContentTypeRelated)
	if related.RootContentType != ContentTypeRelated {
		t.Errorf("RootContentType: got %q, want %q", related.RootContentType, ContentTypeRelated)
	}
}

func TestRecipients_Order(t *testing.T) {
	t.Parallel()

	msg := &Message{
		To:  []*mail.Address{{Address: "a@example.com"}, {Address: "b@example.com"}},
		Cc:  []*mail.Address{{Name: "C", Address: "c@example.com"}},
		Bcc: []*mail.Address{{Address: "d@example.com"}},
	}

	want := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"}
	if got := msg.Recipients(); !reflect.DeepEqual(got, want) {
		t.Errorf("Recipients: got %v, want %v", got, want)
	}
}

func TestSender(t *testing.T) {
	t.Parallel()

	msg := &Message{}
	if msg.Sender() != nil {
		t.Error("expected nil sender for empty From")
	}

	msg.From = []*mail.Address{{Address: "first@example.com"}, {Address: "second@example.com"}}
	if got := msg.Sender().Address; got != "first@example.com" {
		t.Errorf("Sender: got %q, want %q", got, "first@example.com")
	}
}

func TestFormatAddresses(t *testing.T) {
	t.Parallel()

	got := FormatAddresses([]*mail.Address{
		{Name: "Ann", Address: "ann@example.com"},
		{Address: "bob@example.com"},
	})
	want := []string{`"Ann" <ann@example.com>`, "<bob@example.com>"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FormatAddresses: got %v, want %v", got, want)
	}
}

func TestNewAttachment_Defaults(t *testing.T) {
	t.Parallel()

	att := NewAttachment("data.bin", "", "", []byte{1, 2}, "")
	if att.MimeType != "application/octet-stream" {
		t.Errorf("MimeType: got %q", att.MimeType)
	}
	if att.Disposition != DispositionAttachment {
		t.Errorf("Disposition: got %q", att.Disposition)
	}
	if att.Inline() {
		t.Error("expected non-inline attachment")
	}
}

func TestIndexAttachments(t *testing.T) {
	t.Parallel()

	logo := NewAttachment("logo.png", "image/png", DispositionInline, nil, "logo")
	dupe := NewAttachment("other.png", "image/png", DispositionInline, nil, "logo")
	report := NewAttachment("report.pdf", "application/pdf", DispositionAttachment, nil, "")
	anonymous := NewAttachment("", "text/plain", DispositionAttachment, nil, "")

	index := IndexAttachments([]*Attachment{logo, dupe, report, anonymous})

	if len(index) != 2 {
		t.Fatalf("index size: got %d, want 2", len(index))
	}
	if index["logo"] != logo {
		t.Error("first attachment should win on content id collision")
	}
	if index["report.pdf"] != report {
		t.Error("attachment without content id should be keyed by file name")
	}
}

func TestContact(t *testing.T) {
	t.Parallel()

	c := Contact{Name: "Ann", Address: "ann@example.com"}
	a := c.MailAddress()
	if a.Name != "Ann" || a.Address != "ann@example.com" {
		t.Errorf("MailAddress: got %+v", a)
	}
	if got := c.String(); got != `"Ann" <ann@example.com>` {
		t.Errorf("String: got %q", got)
	}
}
