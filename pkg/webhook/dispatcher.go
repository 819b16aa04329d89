// Package webhook delivers session events to outbound HTTP callbacks and
// gates which event types are forwarded at all.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chatwire/chatwire/pkg/logging"
)

// Event is the envelope POSTed to a webhook URL.
type Event struct {
	SessionID string `json:"sessionId"`
	DataType  string `json:"dataType"`
	Data      any    `json:"data"`
}

// Dispatcher posts event envelopes to webhook URLs. Delivery is
// at-most-once: failures are logged and discarded, never retried.
type Dispatcher struct {
	client  *http.Client
	apiKey  string
	timeout time.Duration
	log     *logging.Logger
}

// NewDispatcher creates a dispatcher. The API key is sent in the x-api-key
// header of every call; an empty key omits the header.
func NewDispatcher(apiKey string, timeout time.Duration, log *logging.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		client:  &http.Client{Timeout: timeout},
		apiKey:  apiKey,
		timeout: timeout,
		log:     log,
	}
}

// Send posts one event envelope and reports delivery failure to the caller.
func (d *Dispatcher) Send(ctx context.Context, url string, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("x-api-key", d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Dispatch posts an event in the background. Failures are logged with the
// session id and event type, then dropped; the caller is never affected.
func (d *Dispatcher) Dispatch(url, sessionID, dataType string, data any) {
	if url == "" {
		d.log.Warnf("session %s: no webhook url configured, dropping %s event", sessionID, dataType)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		ev := Event{SessionID: sessionID, DataType: dataType, Data: data}
		if err := d.Send(ctx, url, ev); err != nil {
			d.log.Errorf("session %s: webhook %s delivery failed: %v", sessionID, dataType, err)
		}
	}()
}
