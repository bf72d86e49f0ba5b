package domain

import (
	"fmt"
	"mime"

	"github.com/gabriel-vasile/mimetype"

	"team-chat/errors"
)

// Attachment describes a file shared in a chat. The content itself
// lives outside the message stream; messages carry the descriptor.
type Attachment struct {
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	SizeInBytes  int64  `json:"sizeInBytes"`
	DeclaredType string `json:"-"`
}

// allowedAttachmentTypes is the accept list for shared files. Anything
// executable or unknown stays out.
var allowedAttachmentTypes = map[string]struct{}{
	"text/plain":       {},
	"text/csv":         {},
	"application/pdf":  {},
	"application/json": {},
	"image/png":        {},
	"image/jpeg":       {},
	"image/gif":        {},
}

// SniffAttachment detects the real content type from magic bytes and
// checks it against both the accept list and what the sender declared.
// A declared type that does not match the sniffed one is rejected: the
// extension and the header lie, the bytes do not.
func SniffAttachment(name, declaredType string, data []byte) (Attachment, error) {
	detected := mimetype.Detect(data)
	sniffed, _, err := mime.ParseMediaType(detected.String())
	if err != nil {
		return Attachment{}, fmt.Errorf("%w: undetectable content", errors.ErrAttachmentType)
	}
	if _, ok := allowedAttachmentTypes[sniffed]; !ok {
		return Attachment{}, fmt.Errorf("%w: %s", errors.ErrAttachmentType, sniffed)
	}
	if declaredType != "" {
		declared, _, err := mime.ParseMediaType(declaredType)
		if err != nil || declared != sniffed {
			return Attachment{}, fmt.Errorf("%w: declared %q, detected %q",
				errors.ErrAttachmentType, declaredType, sniffed)
		}
	}
	return Attachment{
		Name:         name,
		MimeType:     sniffed,
		SizeInBytes:  int64(len(data)),
		DeclaredType: declaredType,
	}, nil
}
