// Package sheet posts normalized intake records to the spreadsheet webhook.
// The sink upserts rows keyed by the "Job ID" column, so re-sending a record
// for the same job updates the existing row; idempotency lives entirely in
// the sink.
package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jessewayne86/junk-dispatch/internal/domain"
)

// SinkError reports a non-success response from the sheet sink.
type SinkError struct {
	StatusCode int
	Body       string
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sheet sink returned %d: %s", e.StatusCode, e.Body)
}

// maxResponseBody bounds how much of a sink response is read (64KB).
const maxResponseBody = 64 << 10

// DefaultTimeout bounds a single upsert POST.
const DefaultTimeout = 10 * time.Second

// Relay sends records to the configured sink URL. One POST per record, no
// retries: failures are the caller's to log and discard.
type Relay struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// New creates a Relay. An empty url puts the relay in degraded mode: Send
// reports skipped results instead of posting.
func New(url string, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Relay{
		url:     url,
		timeout: timeout,
		client:  &http.Client{},
	}
}

// Send posts record to the sink as JSON.
//
// No sink configured returns a skipped response and nil error. A non-2xx
// status returns a *SinkError carrying status and body. Response bodies are
// parsed as JSON best-effort; unparsable bodies come back as {"raw": text}.
func (r *Relay) Send(ctx context.Context, record domain.IntakeRecord) (domain.SinkResponse, error) {
	if r.url == "" {
		return domain.SinkResponse{Skipped: true}, nil
	}

	body, err := json.Marshal(record)
	if err != nil {
		return domain.SinkResponse{}, fmt.Errorf("marshal record: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return domain.SinkResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.SinkResponse{}, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.SinkResponse{StatusCode: resp.StatusCode},
			&SinkError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return domain.SinkResponse{
		StatusCode: resp.StatusCode,
		Body:       parseBody(respBody),
	}, nil
}

// parseBody decodes a sink response body, wrapping unparsable bodies so the
// caller always gets a map.
func parseBody(body []byte) map[string]any {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil && parsed != nil {
		return parsed
	}
	return map[string]any{"raw": string(body)}
}
