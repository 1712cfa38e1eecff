// Package mailtext extracts the human-readable text of an email message.
package mailtext

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// FirstPlain returns the decoded content of the first text/plain part of a
// raw RFC822 message. Single-part messages yield their whole payload. When
// no plain part exists, the first inline part is returned instead. Decoding
// is lenient: unknown charsets are tolerated and invalid byte sequences are
// dropped rather than failing the message.
func FirstPlain(raw []byte) (string, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return "", fmt.Errorf("parse message: %w", err)
	}
	if mr == nil {
		return "", fmt.Errorf("parse message: %w", err)
	}

	var fallback string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			break
		}
		if part == nil {
			continue
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		mediaType, _, err := header.ContentType()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		text := strings.ToValidUTF8(string(content), "")

		if strings.EqualFold(mediaType, "text/plain") {
			return text, nil
		}
		if fallback == "" {
			fallback = text
		}
	}

	return fallback, nil
}
