package mail

import (
	"encoding/base64"
	"strings"
)

// mimeBoundary separates the text body from the PDF part in the raw message.
// A fixed boundary keeps the encoded output reproducible.
const mimeBoundary = "prescription_attachment_boundary"

// mimeLineLength is the canonical base64 line width for MIME bodies.
const mimeLineLength = 76

// buildRawMessage assembles an RFC 2822 multipart/mixed message with a
// plain-text part and a base64-encoded PDF attachment part.
func buildRawMessage(msg Message) string {
	var b strings.Builder

	writeHeader := func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	if msg.From != "" {
		writeHeader("From", msg.From)
	}
	writeHeader("To", msg.To)
	writeHeader("Subject", msg.Subject)
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `multipart/mixed; boundary="`+mimeBoundary+`"`)
	b.WriteString("\r\n")

	b.WriteString("--" + mimeBoundary + "\r\n")
	writeHeader("Content-Type", `text/plain; charset="UTF-8"`)
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	b.WriteString("--" + mimeBoundary + "\r\n")
	writeHeader("Content-Type", `application/pdf; name="`+msg.AttachmentName+`"`)
	writeHeader("Content-Transfer-Encoding", "base64")
	writeHeader("Content-Disposition", `attachment; filename="`+msg.AttachmentName+`"`)
	b.WriteString("\r\n")
	b.WriteString(wrapBase64(base64.StdEncoding.EncodeToString(msg.Attachment)))
	b.WriteString("\r\n")

	b.WriteString("--" + mimeBoundary + "--")
	return b.String()
}

// wrapBase64 folds an encoded string into 76-character lines per MIME
// convention.
func wrapBase64(encoded string) string {
	if len(encoded) <= mimeLineLength {
		return encoded
	}
	var b strings.Builder
	for len(encoded) > mimeLineLength {
		b.WriteString(encoded[:mimeLineLength])
		b.WriteString("\r\n")
		encoded = encoded[mimeLineLength:]
	}
	b.WriteString(encoded)
	return b.String()
}

// encodeWebSafe applies the provider's base64url variant: +/ swapped for -_
// and trailing padding stripped.
func encodeWebSafe(raw string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}
