package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// bodyExcerpt bounds how much of a failed response is kept.
const bodyExcerpt = 512

// DeliveryError reports that the webhook did not accept a message. StatusCode
// is zero when no response was received.
type DeliveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("webhook delivery failed: %v", e.Err)
	}
	return strings.TrimSpace(fmt.Sprintf("webhook delivery failed: %d %s", e.StatusCode, e.Body))
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type Webhook struct {
	client *http.Client
	url    string
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{client: NewHTTPClient(timeout), url: url}
}

func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Send posts msg once. Any status of 300 or above is a failure; there is no
// retry.
func (w *Webhook) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode webhook message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return &DeliveryError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*bodyExcerpt))
	if resp.StatusCode >= 300 {
		return &DeliveryError{StatusCode: resp.StatusCode, Body: excerpt(raw)}
	}
	return nil
}

func excerpt(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > bodyExcerpt {
		s = s[:bodyExcerpt]
	}
	return s
}
