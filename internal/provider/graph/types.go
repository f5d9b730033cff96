// Package graph implements a Provider that sends emails via the Microsoft Graph API.
package graph

import (
	"encoding/base64"
	"net/mail"

	"github.com/shineum/mailmessage/internal/email"
)

// sendMailRequest is the top-level request body for the Graph API sendMail endpoint.
type sendMailRequest struct {
	Message         sendMailMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

// sendMailMessage represents the message portion of a sendMail request.
type sendMailMessage struct {
	Subject                    string            `json:"subject"`
	Body                       messageBody       `json:"body"`
	From                       *recipient        `json:"from,omitempty"`
	ToRecipients               []recipient       `json:"toRecipients"`
	CcRecipients               []recipient       `json:"ccRecipients,omitempty"`
	BccRecipients              []recipient       `json:"bccRecipients,omitempty"`
	ReplyTo                    []recipient       `json:"replyTo,omitempty"`
	Importance                 string            `json:"importance,omitempty"`
	IsReadReceiptRequested     bool              `json:"isReadReceiptRequested,omitempty"`
	IsDeliveryReceiptRequested bool              `json:"isDeliveryReceiptRequested,omitempty"`
	Attachments                []graphAttachment `json:"attachments,omitempty"`
}

// messageBody represents the body of an email message.
type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// recipient represents an email recipient.
type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

// emailAddress represents an email address in a Graph API request.
type emailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// graphAttachment represents a file attachment in a Graph API request.
type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
	ContentID    string `json:"contentId,omitempty"`
	IsInline     bool   `json:"isInline,omitempty"`
}

// graphErrorResponse represents an error response from the Graph API.
type graphErrorResponse struct {
	Error graphError `json:"error"`
}

// graphError represents the error detail in a Graph API error response.
type graphError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// buildSendMailRequest converts an email.Message into a Graph API sendMail request body.
// Graph carries a single body, so HTML wins over text when both are present.
func buildSendMailRequest(msg *email.Message) *sendMailRequest {
	body := messageBody{
		ContentType: "text",
		Content:     msg.TextBody,
	}
	if msg.HTMLBody != "" {
		body.ContentType = "html"
		body.Content = msg.HTMLBody
	}

	out := sendMailMessage{
		Subject:                    msg.Subject,
		Body:                       body,
		ToRecipients:               recipients(msg.To),
		CcRecipients:               recipients(msg.Cc),
		BccRecipients:              recipients(msg.Bcc),
		ReplyTo:                    recipients(msg.ReplyTo),
		IsReadReceiptRequested:     len(msg.ReadReceipt) > 0,
		IsDeliveryReceiptRequested: len(msg.DeliveryReceipt) > 0,
	}
	if from := msg.Sender(); from != nil {
		r := toRecipient(from)
		out.From = &r
	}
	if msg.Importance != email.ImportanceNormal {
		out.Importance = msg.Importance.String()
	}

	out.Attachments = make([]graphAttachment, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		name := att.FileName
		if name == "" {
			name = att.ContentID
		}
		out.Attachments = append(out.Attachments, graphAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         name,
			ContentType:  att.MimeType,
			ContentBytes: base64.StdEncoding.EncodeToString(att.Content),
			ContentID:    att.ContentID,
			IsInline:     att.Inline(),
		})
	}

	return &sendMailRequest{
		Message:         out,
		SaveToSentItems: true,
	}
}

func recipients(list []*mail.Address) []recipient {
	out := make([]recipient, 0, len(list))
	for _, a := range list {
		out = append(out, toRecipient(a))
	}
	return out
}

func toRecipient(a *mail.Address) recipient {
	return recipient{EmailAddress: emailAddress{Name: a.Name, Address: a.Address}}
}
