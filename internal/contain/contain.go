// Package contain dispatches block requests to the enforcement agent.
package contain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTimeout bounds a containment request.
const DefaultTimeout = 5 * time.Second

// Agent is the HTTP client for the enforcement agent. It implements
// triage.Containment.
type Agent struct {
	endpoint string
	client   *http.Client
}

// New creates an Agent posting to endpoint.
func New(endpoint string, timeout time.Duration) *Agent {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Agent{
		endpoint: endpoint,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Contain asks the agent to block ip.
func (a *Agent) Contain(ctx context.Context, ip string) error {
	body, err := json.Marshal(map[string]string{"ip": ip})
	if err != nil {
		return fmt.Errorf("contain: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("contain: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req) //nolint:gosec // endpoint is from trusted config
	if err != nil {
		return fmt.Errorf("contain: post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("contain: agent returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}
