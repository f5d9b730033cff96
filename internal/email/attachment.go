package email

// Disposition controls whether an attachment is shown inline or as a file.
type Disposition string

const (
	DispositionAttachment Disposition = "attachment"
	DispositionInline     Disposition = "inline"
)

// Attachment represents a file attached to an email message.
type Attachment struct {
	// ContentID identifies the part for cid: references and calendar invites.
	ContentID   string
	FileName    string
	MimeType    string
	Disposition Disposition
	Content     []byte
}

// NewAttachment creates an attachment. An empty mime type defaults to
// application/octet-stream and an empty disposition to DispositionAttachment.
func NewAttachment(fileName, mimeType string, disposition Disposition, content []byte, contentID string) *Attachment {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if disposition == "" {
		disposition = DispositionAttachment
	}
	return &Attachment{
		ContentID:   contentID,
		FileName:    fileName,
		MimeType:    mimeType,
		Disposition: disposition,
		Content:     content,
	}
}

// Inline reports whether the attachment is meant to be embedded in the body.
func (a *Attachment) Inline() bool {
	return a.Disposition == DispositionInline
}

// IndexAttachments maps each attachment's content id to the attachment.
// Attachments without a content id are keyed by file name. When two
// attachments share a key the first one wins.
func IndexAttachments(atts []*Attachment) map[string]*Attachment {
	index := make(map[string]*Attachment, len(atts))
	for _, att := range atts {
		key := att.ContentID
		if key == "" {
			key = att.FileName
		}
		if key == "" {
			continue
		}
		if _, ok := index[key]; !ok {
			index[key] = att
		}
	}
	return index
}
