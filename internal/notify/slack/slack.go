// Package slack sends case notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

const (
	maxExcerptLen = 500
	httpTimeout   = 2 * time.Second
)

// Notifier sends case summaries to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Notify implements triage.Notifier.
func (n *Notifier) Notify(ctx context.Context, msg *triage.Notification) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(msg))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// buildMessage carries a plain text line for clients that ignore blocks.
func buildMessage(m *triage.Notification) map[string]any {
	emoji := priorityEmoji(m.Priority)
	excerpt := Excerpt(m.Report)
	return map[string]any{
		"text": fmt.Sprintf("%s SOC ALERT: %s Priority | %s | %s", emoji, m.Priority, m.Hostname, m.CaseID),
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("%s SOC ALERT: %s Priority", emoji, m.Priority),
				},
			},
			{
				"type": "section",
				"fields": []map[string]any{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Asset:* %s", m.Hostname)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Ticket:* %s", m.CaseID)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Verdict:* %s", m.Verdict)},
				},
			},
			{"type": "divider"},
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Analysis*\n%s", excerpt),
				},
			},
		},
	}
}

func priorityEmoji(priority string) string {
	switch priority {
	case triage.PriorityHighest, triage.PriorityHigh:
		return "\U0001f6a8" // rotating light
	case triage.PriorityLowest:
		return "✅" // check mark
	default:
		return "⚠️" // warning sign
	}
}

const sectionMarker = "technical analysis"

// Excerpt condenses a report for chat. It takes the technical analysis
// section (up to the next line starting with '#') or, failing that, the
// start of the report, then folds newlines and bounds the length.
func Excerpt(report string) string {
	text := report
	if i := indexFold(report, sectionMarker); i >= 0 {
		rest := report[i+len(sectionMarker):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		} else {
			rest = ""
		}
		if strings.HasPrefix(rest, "#") {
			rest = ""
		} else if j := strings.Index(rest, "\n#"); j >= 0 {
			rest = rest[:j]
		}
		text = rest
	}

	text = strings.Join(strings.Fields(truncate(text, maxExcerptLen*2)), " ")
	text = truncate(text, maxExcerptLen)
	if text == "" {
		return "_No analysis available._"
	}
	return text
}

// indexFold is a case-insensitive strings.Index for an ASCII needle.
func indexFold(s, needle string) int {
	for i := 0; i+len(needle) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
