// Package attachment loads attachment content from local files and S3.
package attachment

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/shineum/mailmessage/internal/email"
)

// MaxSize caps the content read for a single attachment.
const MaxSize = 25 << 20

// ErrTooLarge is returned when an attachment exceeds MaxSize.
var ErrTooLarge = errors.New("attachment exceeds maximum size")

// FromFile reads the file at path into an attachment named after the file.
// Inline attachments get the file name as content id so templates can
// reference them with cid:.
func FromFile(path string, disposition email.Disposition) (*email.Attachment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	defer f.Close()

	content, err := readLimited(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment %s: %w", path, err)
	}

	name := filepath.Base(path)
	var contentID string
	if disposition == email.DispositionInline {
		contentID = name
	}
	return email.NewAttachment(name, DetectType(name, content), disposition, content, contentID), nil
}

// DetectType returns the MIME type for name, falling back to sniffing content.
func DetectType(name string, content []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	if len(content) == 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(content)
}

func readLimited(r io.Reader) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, err
	}
	if len(content) > MaxSize {
		return nil, ErrTooLarge
	}
	return content, nil
}
