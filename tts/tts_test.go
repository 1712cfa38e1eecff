package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSynthesize(t *testing.T) {
	audio := []byte("\xff\xf3mp3-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/text-to-speech/voice-123" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "secret-key" {
			t.Errorf("xi-api-key = %q", got)
		}

		var req synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "hello" {
			t.Errorf("text = %q, want %q", req.Text, "hello")
		}
		if req.ModelID != DefaultModelID {
			t.Errorf("model_id = %q, want default", req.ModelID)
		}

		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "secret-key", VoiceID: "voice-123", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	got, err := client.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("Synthesize() = %q, want %q", got, audio)
	}
}

func TestSynthesize_ErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "bad", VoiceID: "voice-123", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatal("Synthesize() expected error")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error = %v, want status and body", err)
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(Options{VoiceID: "v"}); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := NewClient(Options{APIKey: "k"}); err == nil {
		t.Error("expected error for missing voice id")
	}
}
