package events

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eventpass/backend/internal/models"
)

// Webhook POSTs each event as JSON to a fixed URL.
type Webhook struct {
	url        string
	secret     string
	httpClient *http.Client
}

func NewWebhook(url, secret string) *Webhook {
	return &Webhook{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *Webhook) Publish(ctx context.Context, ev models.Event) error {
	body, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("%w: encode event %d: %v", ErrPermanent, ev.Seq, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build webhook request: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Seq", fmt.Sprint(ev.Seq))
	req.Header.Set("X-Event-Kind", ev.Kind)
	if w.secret != "" {
		req.Header.Set("Authorization", "Bearer "+w.secret)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling event webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return fmt.Errorf("%w: webhook returned %d", ErrPermanent, resp.StatusCode)
	default:
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
}
