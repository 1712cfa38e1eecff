package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultModelID = "eleven_multilingual_v2"

	// Audio rendering is slower than a plain webhook, but a hung request
	// must not stall the poll loop forever.
	synthesisTimeout = 30 * time.Second
)

type Options struct {
	APIKey  string
	VoiceID string
	ModelID string
	// BaseURL overrides the synthesis endpoint, used by tests.
	BaseURL string
}

// Client calls an ElevenLabs-style text-to-speech endpoint and returns the
// raw audio bytes.
type Client struct {
	opts       Options
	httpClient *http.Client
}

func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("synthesis api key is empty")
	}
	if opts.VoiceID == "" {
		return nil, fmt.Errorf("synthesis voice id is empty")
	}
	if opts.ModelID == "" {
		opts.ModelID = DefaultModelID
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: synthesisTimeout},
	}, nil
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize renders text to audio. Any non-200 status is an error carrying
// the response body.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.opts.BaseURL, c.opts.VoiceID)

	payload, err := json.Marshal(synthesisRequest{Text: text, ModelID: c.opts.ModelID})
	if err != nil {
		return nil, fmt.Errorf("encode synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.opts.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("synthesis status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis response: %w", err)
	}
	return audio, nil
}
