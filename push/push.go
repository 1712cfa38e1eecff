package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Fire-and-forget: a slow webhook must not hold a poll cycle hostage.
const pushTimeout = 10 * time.Second

// Client posts notifications to a Pushcut-style webhook.
type Client struct {
	webhookURL string
	httpClient *http.Client
}

func NewClient(webhookURL string) (*Client, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("push webhook url is empty")
	}
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: pushTimeout},
	}, nil
}

type notification struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// Send delivers a titled message with a link to the device. Failures are
// returned once; nothing here retries.
func (c *Client) Send(ctx context.Context, title, text, url string) error {
	payload, err := json.Marshal(notification{Title: title, Text: text, URL: url})
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push status %d", resp.StatusCode)
	}
	return nil
}
