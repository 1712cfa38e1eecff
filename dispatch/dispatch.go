package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/circuitsaga/payvoice/journal"
	"github.com/circuitsaga/payvoice/model"
)

const (
	pushTitle = "💰 Payment Received"
	pushText  = "Tap to hear payment voice"
)

// Synthesizer renders text to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Pusher delivers a titled message with a link to the device.
type Pusher interface {
	Send(ctx context.Context, title, text, url string) error
}

type Options struct {
	// VoiceDir is where generated clips are written. Created on first use.
	VoiceDir string
	// PublicBaseURL is the external address the voice server is reachable
	// at, used to build clip links.
	PublicBaseURL string
}

// Dispatcher turns a payment event into a voice push notification:
// synthesize the announcement, store the clip under a unique name, push a
// link to it. Clips are written once and never touched again.
type Dispatcher struct {
	opts    Options
	tts     Synthesizer
	push    Pusher
	journal *journal.Writer
	logger  *slog.Logger
}

func New(opts Options, tts Synthesizer, push Pusher, jw *journal.Writer, logger *slog.Logger) (*Dispatcher, error) {
	if opts.VoiceDir == "" {
		return nil, fmt.Errorf("voice directory is empty")
	}
	if opts.PublicBaseURL == "" {
		return nil, fmt.Errorf("public base url is empty")
	}
	if tts == nil {
		return nil, fmt.Errorf("synthesizer must not be nil")
	}
	if push == nil {
		return nil, fmt.Errorf("pusher must not be nil")
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")

	return &Dispatcher{
		opts:    opts,
		tts:     tts,
		push:    push,
		journal: jw,
		logger:  logger,
	}, nil
}

// Dispatch announces one payment event. A synthesis failure aborts before
// anything is written; a push failure is returned but the clip stays on
// disk. Nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, evt model.PaymentEvent) error {
	text, err := SpokenText(evt)
	if err != nil {
		return err
	}

	audio, err := d.tts.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if d.logger != nil {
		d.logger.Debug("voice generated", "bytes", len(audio))
	}

	filename := clipFilename()
	if err := d.writeClip(filename, audio); err != nil {
		return err
	}

	clipURL := fmt.Sprintf("%s/voice/%s", d.opts.PublicBaseURL, filename)
	pushErr := d.push.Send(ctx, pushTitle, pushText, clipURL)
	if pushErr != nil {
		pushErr = fmt.Errorf("push: %w", pushErr)
	} else if d.logger != nil {
		d.logger.Info("push sent", "url", clipURL)
	}

	d.record(evt, filename, pushErr == nil)
	return pushErr
}

// SpokenText composes the announcement read out by the voice. The amount is
// truncated to whole rupees.
func SpokenText(evt model.PaymentEvent) (string, error) {
	value, err := strconv.ParseFloat(evt.Amount, 64)
	if err != nil {
		return "", fmt.Errorf("parse amount %q: %w", evt.Amount, err)
	}
	return fmt.Sprintf("You have received %d rupees from %s just now. Thank you!", int64(value), evt.Sender), nil
}

// clipFilename returns a collision-resistant name. Random per event, not
// derived from content: two payments with identical bodies must not share
// a file.
func clipFilename() string {
	return fmt.Sprintf("payment_%s.mp3", strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func (d *Dispatcher) writeClip(filename string, audio []byte) error {
	if err := os.MkdirAll(d.opts.VoiceDir, 0o755); err != nil {
		return fmt.Errorf("create voice directory: %w", err)
	}

	path := filepath.Join(d.opts.VoiceDir, filename)
	// O_EXCL enforces the write-once contract with the voice server.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create clip: %w", err)
	}
	if _, err := file.Write(audio); err != nil {
		_ = file.Close()
		return fmt.Errorf("write clip: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close clip: %w", err)
	}
	return nil
}

func (d *Dispatcher) record(evt model.PaymentEvent, clip string, pushed bool) {
	if d.journal == nil {
		return
	}
	record := journal.Record{
		Time:   time.Now(),
		Amount: evt.Amount,
		Sender: evt.Sender,
		Clip:   clip,
		Pushed: pushed,
	}
	if err := d.journal.Append(record); err != nil && d.logger != nil {
		d.logger.Warn("journal append failed", "err", err)
	}
}
