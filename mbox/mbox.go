package mbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"

	mboxlib "github.com/emersion/go-mbox"
)

// Message is one raw message streamed out of an mbox archive.
type Message struct {
	Index   int
	From    string
	Subject string
	Raw     []byte
}

// Read streams every message in the archive through fn. Messages whose
// headers cannot be parsed are skipped; fn returning an error stops the
// scan and is returned as-is.
func Read(path string, fn func(*Message) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)

	for idx := 0; ; idx++ {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return fmt.Errorf("message %d read: %w", idx, err)
		}

		parsed, err := mail.ReadMessage(bytes.NewReader(raw))
		if err != nil {
			continue
		}

		msg := &Message{
			Index:   idx,
			From:    parsed.Header.Get("From"),
			Subject: parsed.Header.Get("Subject"),
			Raw:     raw,
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}
