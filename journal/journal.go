package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Writer appends one JSON line per dispatched payment so there is an audit
// trail of everything that was announced. It plays no part in
// de-duplication; the mailbox seen flag is what prevents reprocessing.
type Writer struct {
	path    string
	file    *os.File
	writer  *bufio.Writer
	writeMu sync.Mutex
}

type Record struct {
	Time   time.Time `json:"time"`
	Amount string    `json:"amount"`
	Sender string    `json:"sender"`
	Clip   string    `json:"clip"`
	Pushed bool      `json:"pushed"`
}

func New(dir string) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("journal directory is empty")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	path := filepath.Join(dir, "dispatched.jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open journal for append: %w", err)
	}

	return &Writer{
		path:   path,
		file:   file,
		writer: bufio.NewWriterSize(file, 16*1024),
	}, nil
}

// Append records one dispatched event. Events are rare, so each record is
// flushed immediately.
func (w *Writer) Append(record Record) error {
	if record.Time.IsZero() {
		record.Time = time.Now()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("write journal record: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// Path returns the journal file location.
func (w *Writer) Path() string {
	return w.path
}

// Close flushes and closes the journal file.
func (w *Writer) Close() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	var firstErr error
	if err := w.writer.Flush(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("flush journal: %w", err)
	}
	if err := w.file.Sync(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("sync journal: %w", err)
	}
	if err := w.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close journal: %w", err)
	}
	return firstErr
}
