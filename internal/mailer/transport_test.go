package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mailmessage/internal/address"
	"github.com/shineum/mailmessage/internal/email"
	"github.com/shineum/mailmessage/internal/provider"
	"github.com/shineum/mailmessage/internal/provider/stdout"
	"github.com/shineum/mailmessage/internal/template"
)

type stubProvider struct {
	sent []*email.Message
	err  error
}

func (s *stubProvider) Send(_ context.Context, msg *email.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubProvider) Name() string { return "stub" }

var _ provider.Provider = (*stubProvider)(nil)

func testDispatcher() *Dispatcher {
	d := NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.newID = func() string { return "fixed-id" }
	return d
}

func recipientMessage() *email.Message {
	msg := email.NewMessage(email.ContentTypeMixed)
	msg.To = []*mail.Address{{Address: "to@example.com"}}
	return msg
}

func TestDispatcher_Send(t *testing.T) {
	t.Parallel()

	p := &stubProvider{}
	sess := &Session{
		Name:        "primary",
		Provider:    p,
		DefaultFrom: &mail.Address{Name: "Example", Address: "noreply@example.com"},
		Hostname:    "mail.example.com",
	}

	msg := recipientMessage()
	require.NoError(t, testDispatcher().Send(context.Background(), msg, sess))

	require.Len(t, p.sent, 1)
	assert.Same(t, msg, p.sent[0])
	assert.Equal(t, "fixed-id@mail.example.com", msg.MessageID)
	require.Len(t, msg.From, 1)
	assert.Equal(t, "noreply@example.com", msg.From[0].Address)
	assert.NotSame(t, sess.DefaultFrom, msg.From[0], "session default is copied")
}

func TestDispatcher_KeepsExplicitFields(t *testing.T) {
	t.Parallel()

	p := &stubProvider{}
	sess := &Session{
		Provider:    p,
		DefaultFrom: &mail.Address{Address: "noreply@example.com"},
	}

	msg := recipientMessage()
	msg.From = []*mail.Address{{Address: "me@example.com"}}
	msg.MessageID = "mine@example.com"

	require.NoError(t, testDispatcher().Send(context.Background(), msg, sess))
	assert.Equal(t, []string{"me@example.com"}, email.Addresses(msg.From))
	assert.Equal(t, "mine@example.com", msg.MessageID)
}

func TestDispatcher_DefaultHostname(t *testing.T) {
	t.Parallel()

	msg := recipientMessage()
	require.NoError(t, testDispatcher().Send(context.Background(), msg, &Session{Provider: &stubProvider{}}))
	assert.Equal(t, "fixed-id@localhost", msg.MessageID)
}

func TestDispatcher_Failures(t *testing.T) {
	t.Parallel()

	relayDown := errors.New("relay down")

	tests := []struct {
		name         string
		sess         *Session
		msg          *email.Message
		wantErr      error
		wantProvider string
	}{
		{
			name:    "nil session",
			sess:    nil,
			msg:     recipientMessage(),
			wantErr: ErrNoProvider,
		},
		{
			name:    "session without provider",
			sess:    &Session{Name: "empty"},
			msg:     recipientMessage(),
			wantErr: ErrNoProvider,
		},
		{
			name:         "no recipients",
			sess:         &Session{Provider: &stubProvider{}},
			msg:          email.NewMessage(email.ContentTypeMixed),
			wantErr:      ErrNoRecipient,
			wantProvider: "stub",
		},
		{
			name:         "provider error",
			sess:         &Session{Provider: &stubProvider{err: relayDown}},
			msg:          recipientMessage(),
			wantErr:      relayDown,
			wantProvider: "stub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := testDispatcher().Send(context.Background(), tt.msg, tt.sess)

			var sfe *SendFailureError
			require.ErrorAs(t, err, &sfe)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantProvider, sfe.Provider)
		})
	}
}

func TestSendFailureError_Message(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "send failed: boom", (&SendFailureError{Err: errors.New("boom")}).Error())
	assert.Equal(t, "send via ses failed: boom", (&SendFailureError{Provider: "ses", Err: errors.New("boom")}).Error())
}

func TestMailer_EndToEnd(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	sess := &Session{
		Name:        "stdout",
		Provider:    stdout.NewWithWriter(&out),
		DefaultFrom: &mail.Address{Address: "noreply@example.com"},
		Hostname:    "example.com",
	}
	m := New(StaticSession(sess), slog.New(slog.NewTextHandler(io.Discard, nil)))

	msg, err := m.Message().
		To(address.Named("ann@example.com", "Ann")).
		SubjectTemplate(template.MustText("subject", "Welcome {{.name}}")).
		TextBody("Glad to have you.").
		Put("name", "Ann").
		Send(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Welcome Ann", msg.Subject)
	assert.NotEmpty(t, msg.MessageID)
	assert.Contains(t, out.String(), "Subject: Welcome Ann")
	assert.Contains(t, out.String(), `To: "Ann" <ann@example.com>`)
	assert.Contains(t, out.String(), "From: <noreply@example.com>")
}

func TestMailer_WithTransport(t *testing.T) {
	t.Parallel()

	rt := &recordingTransport{}
	m := NewWithTransport(rt, StaticSession(testSession()))

	_, err := m.Message(WithRootContentType(email.ContentTypeAlternative)).
		To(address.Raw("to@example.com")).
		Send(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rt.calls)
	assert.Equal(t, email.ContentTypeAlternative, rt.msg.RootContentType)
}

func TestMailer_NoSessions(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil).Message().To(address.Raw("to@example.com")).Send(context.Background())
	require.ErrorIs(t, err, ErrNoSessionAvailable)
}
