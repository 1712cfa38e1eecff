package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSend(t *testing.T) {
	var got notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	err = client.Send(context.Background(), "💰 Payment Received", "Tap to hear payment voice", "https://example.com/voice/clip.mp3")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got.Title != "💰 Payment Received" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Text != "Tap to hear payment voice" {
		t.Errorf("text = %q", got.Text)
	}
	if got.URL != "https://example.com/voice/clip.mp3" {
		t.Errorf("url = %q", got.URL)
	}
}

func TestSend_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if err := client.Send(context.Background(), "t", "x", "u"); err == nil {
		t.Error("Send() expected error on 502")
	}
}

func TestNewClient_EmptyURL(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Error("expected error for empty webhook url")
	}
}
