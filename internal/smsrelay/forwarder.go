// Package smsrelay forwards inbound SMS form payloads to the voice
// platform's SMS endpoint and passes its TwiML autoresponse back verbatim.
package smsrelay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// EmptyTwiML is the fallback autoresponse when forwarding is unconfigured or
// fails: acknowledge the message, send nothing back to the texter.
const EmptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// maxResponseBody bounds how much of the platform response is read (64KB).
const maxResponseBody = 64 << 10

// Forwarder relays Twilio form payloads to the platform URL. An empty URL
// disables forwarding.
type Forwarder struct {
	url    string
	client *http.Client
}

func New(url string, timeout time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Forwarder{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a platform URL is configured.
func (f *Forwarder) Enabled() bool {
	return f.url != ""
}

// Forward posts the form to the platform and returns the XML autoresponse
// body verbatim.
func (f *Forwarder) Forward(ctx context.Context, form url.Values) (string, error) {
	if f.url == "" {
		return "", fmt.Errorf("no platform SMS URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("forward: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("platform returned %d", resp.StatusCode)
	}

	return string(body), nil
}
