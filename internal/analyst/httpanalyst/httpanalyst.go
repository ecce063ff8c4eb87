// Package httpanalyst implements triage.Analyst against an external analyst
// service: POST the analysis request as JSON, read {"verdict_report": "..."}.
package httpanalyst

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

// DefaultTimeout covers model inference on the remote side.
const DefaultTimeout = 45 * time.Second

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

type response struct {
	VerdictReport *string `json:"verdict_report"`
}

// Client calls the analyst service.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a client for endpoint. A zero timeout uses DefaultTimeout.
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Analyze implements triage.Analyst.
func (c *Client) Analyze(ctx context.Context, req *triage.AnalysisRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("analyst service error %d: %s", resp.StatusCode, truncate(respBody, 256))
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode response: %v: %w", err, triage.ErrMalformedReport)
	}
	if out.VerdictReport == nil {
		return "", fmt.Errorf("response has no verdict_report: %w", triage.ErrMalformedReport)
	}
	return *out.VerdictReport, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
