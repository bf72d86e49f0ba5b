package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"team-chat/errors"
)

// pngHeader is the 8-byte PNG signature plus a minimal IHDR start,
// enough for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func TestSniffAttachment_AcceptsMatchingDeclaration(t *testing.T) {
	req := require.New(t)

	attachment, err := SniffAttachment("diagram.png", "image/png", pngHeader)
	req.NoError(err)
	req.Equal("diagram.png", attachment.Name)
	req.Equal("image/png", attachment.MimeType)
	req.Equal(int64(len(pngHeader)), attachment.SizeInBytes)
}

func TestSniffAttachment_TrustsBytesOverDeclaration(t *testing.T) {
	req := require.New(t)

	// PNG bytes declared as a PDF: the declaration lies, reject it.
	_, err := SniffAttachment("report.pdf", "application/pdf", pngHeader)
	req.ErrorIs(err, errors.ErrAttachmentType)
}

func TestSniffAttachment_RejectsDisallowedType(t *testing.T) {
	req := require.New(t)

	// An ELF executable is never acceptable, whatever it is named.
	elf := []byte{0x7F, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	_, err := SniffAttachment("notes.txt", "", elf)
	req.ErrorIs(err, errors.ErrAttachmentType)
}

func TestSniffAttachment_PlainTextWithoutDeclaration(t *testing.T) {
	req := require.New(t)

	attachment, err := SniffAttachment("notes.txt", "", []byte("meeting notes for tuesday\n"))
	req.NoError(err)
	req.Equal("text/plain", attachment.MimeType)
}

func TestSniffAttachment_DeclarationWithParameters(t *testing.T) {
	req := require.New(t)

	// Parameters like charset are stripped before comparing.
	attachment, err := SniffAttachment("notes.txt", "text/plain; charset=utf-8", []byte("plain enough\n"))
	req.NoError(err)
	req.Equal("text/plain", attachment.MimeType)
}
