package dispatch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/circuitsaga/payvoice/model"
)

type fakeSynthesizer struct {
	audio []byte
	err   error
	calls int
	texts []string
}

func (s *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.calls++
	s.texts = append(s.texts, text)
	if s.err != nil {
		return nil, s.err
	}
	return s.audio, nil
}

type fakePusher struct {
	err   error
	calls int
	urls  []string
}

func (p *fakePusher) Send(ctx context.Context, title, text, url string) error {
	p.calls++
	p.urls = append(p.urls, url)
	return p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(t *testing.T, synth *fakeSynthesizer, pusher *fakePusher) (*Dispatcher, string) {
	t.Helper()
	dir := t.TempDir()
	d, err := New(Options{VoiceDir: dir, PublicBaseURL: "https://voice.example.com/"}, synth, pusher, nil, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d, dir
}

func clipsIn(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read voice dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestDispatch(t *testing.T) {
	audio := []byte("mp3 bytes")
	synth := &fakeSynthesizer{audio: audio}
	pusher := &fakePusher{}
	d, dir := newTestDispatcher(t, synth, pusher)

	evt := model.PaymentEvent{Amount: "250.0", Sender: "RAHUL K"}
	if err := d.Dispatch(context.Background(), evt); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if synth.calls != 1 {
		t.Errorf("synthesize calls = %d, want 1", synth.calls)
	}
	if !strings.Contains(synth.texts[0], "250 rupees") || !strings.Contains(synth.texts[0], "RAHUL K") {
		t.Errorf("spoken text = %q", synth.texts[0])
	}

	clips := clipsIn(t, dir)
	if len(clips) != 1 {
		t.Fatalf("clips = %v, want exactly one", clips)
	}
	written, err := os.ReadFile(filepath.Join(dir, clips[0]))
	if err != nil {
		t.Fatalf("read clip: %v", err)
	}
	if !bytes.Equal(written, audio) {
		t.Errorf("clip bytes = %q, want %q", written, audio)
	}

	if pusher.calls != 1 {
		t.Fatalf("push calls = %d, want 1", pusher.calls)
	}
	want := "https://voice.example.com/voice/" + clips[0]
	if pusher.urls[0] != want {
		t.Errorf("push url = %q, want %q", pusher.urls[0], want)
	}
}

func TestDispatch_UniqueFilenames(t *testing.T) {
	synth := &fakeSynthesizer{audio: []byte("a")}
	pusher := &fakePusher{}
	d, dir := newTestDispatcher(t, synth, pusher)

	evt := model.PaymentEvent{Amount: "1", Sender: "A"}
	for i := 0; i < 3; i++ {
		if err := d.Dispatch(context.Background(), evt); err != nil {
			t.Fatalf("Dispatch() #%d error = %v", i, err)
		}
	}

	if clips := clipsIn(t, dir); len(clips) != 3 {
		t.Errorf("clips = %v, want 3 distinct files", clips)
	}
}

func TestDispatch_SynthesisFailureAbortsEverything(t *testing.T) {
	synth := &fakeSynthesizer{err: errors.New("quota exceeded")}
	pusher := &fakePusher{}
	d, dir := newTestDispatcher(t, synth, pusher)

	err := d.Dispatch(context.Background(), model.PaymentEvent{Amount: "5", Sender: "B"})
	if err == nil {
		t.Fatal("Dispatch() expected error")
	}
	if pusher.calls != 0 {
		t.Errorf("push calls = %d, want 0 after synthesis failure", pusher.calls)
	}
	if clips := clipsIn(t, dir); len(clips) != 0 {
		t.Errorf("clips = %v, want none", clips)
	}
}

func TestDispatch_PushFailureKeepsClip(t *testing.T) {
	synth := &fakeSynthesizer{audio: []byte("a")}
	pusher := &fakePusher{err: errors.New("webhook down")}
	d, dir := newTestDispatcher(t, synth, pusher)

	err := d.Dispatch(context.Background(), model.PaymentEvent{Amount: "5", Sender: "B"})
	if err == nil {
		t.Fatal("Dispatch() expected error")
	}
	if clips := clipsIn(t, dir); len(clips) != 1 {
		t.Errorf("clips = %v, want the clip kept", clips)
	}
	if pusher.calls != 1 {
		t.Errorf("push calls = %d, want exactly 1 (no retry)", pusher.calls)
	}
}

func TestSpokenText(t *testing.T) {
	tests := []struct {
		amount string
		sender string
		want   string
		wantOK bool
	}{
		{"250.0", "RAHUL K", "You have received 250 rupees from RAHUL K just now. Thank you!", true},
		{"1", "MAJIDA B", "You have received 1 rupees from MAJIDA B just now. Thank you!", true},
		{"99.99", "A", "You have received 99 rupees from A just now. Thank you!", true},
		{"not-a-number", "A", "", false},
	}

	for _, tt := range tests {
		got, err := SpokenText(model.PaymentEvent{Amount: tt.amount, Sender: tt.sender})
		if (err == nil) != tt.wantOK {
			t.Errorf("SpokenText(%q) error = %v, wantOK %v", tt.amount, err, tt.wantOK)
			continue
		}
		if got != tt.want {
			t.Errorf("SpokenText(%q) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
