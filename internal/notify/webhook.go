package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// WebhookSender posts messages as JSON to the mail service's webhook.
type WebhookSender struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// NewWebhookSender returns a sender posting to url with apiKey in the Authorization header.
func NewWebhookSender(url, apiKey string) *WebhookSender {
	return &WebhookSender{
		URL:        url,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send posts msg. Any non-2xx response is an error.
func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	if s.URL == "" {
		return errors.New("notify: webhook url not configured")
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", s.APIKey)
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
