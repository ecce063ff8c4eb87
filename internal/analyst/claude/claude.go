// Package claude implements triage.Analyst directly on the Claude Messages
// API. The model is instructed to open its report with a decision line the
// marker classifier understands.
package claude

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

// Defaults for Config.
const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 2048
	DefaultTimeout   = 45 * time.Second
)

// Config configures the Claude analyst.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Timeout   time.Duration

	// OrgName and Policy are folded into the system prompt. Policy is the
	// organization's written maintenance and acceptable-use policy.
	OrgName string
	Policy  string

	// BaseURL overrides the API endpoint, for tests and gateways.
	BaseURL string
}

// Analyst asks Claude for a verdict report.
type Analyst struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	system    string
}

// New creates a Claude analyst. SDK retries are disabled: a failed call is
// reported to the pipeline as-is.
func New(cfg Config) *Analyst {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Analyst{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		system:    SystemPrompt(cfg.OrgName, cfg.Policy),
	}
}

// Analyze implements triage.Analyst.
func (a *Analyst) Analyze(ctx context.Context, req *triage.AnalysisRequest) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: a.system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(UserPrompt(req))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude messages: %w", err)
	}
	report := reportText(msg)
	if strings.TrimSpace(report) == "" {
		return "", fmt.Errorf("claude returned no text (stop reason %q): %w", msg.StopReason, triage.ErrMalformedReport)
	}
	return report, nil
}

func reportText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// SystemPrompt builds the analyst instructions.
func SystemPrompt(org, policy string) string {
	if org == "" {
		org = "the organization"
	}
	if strings.TrimSpace(policy) == "" {
		policy = "No specific maintenance policy provided."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a senior tier-3 SOC analyst at %s.\n\n", org)
	b.WriteString("--- CORPORATE SECURITY POLICY ---\n")
	b.WriteString(strings.TrimSpace(policy))
	b.WriteString("\n--- END POLICY ---\n\n")
	b.WriteString("DECISION PROTOCOL (MANDATORY):\n")
	b.WriteString("The first line of every response must be exactly one of:\n")
	b.WriteString("[DECISION] | AUTHORIZED   (activity explicitly permitted by the policy)\n")
	b.WriteString("[DECISION] | MALICIOUS    (activity the policy prohibits, or clear attacker tradecraft)\n")
	b.WriteString("[DECISION] | SUSPICIOUS   (everything else)\n\n")
	b.WriteString("After the first line write a flat technical report using ## headers, ")
	b.WriteString("including a ## Technical Analysis section and MITRE ATT&CK technique ids where they apply. ")
	b.WriteString("Addresses and emails in the command are masked; do not try to recover them.")
	return b.String()
}

// UserPrompt renders one analysis request.
func UserPrompt(req *triage.AnalysisRequest) string {
	hours := "outside business hours"
	if req.IsBusinessHours {
		hours = "during business hours"
	}
	return fmt.Sprintf("ANALYSIS REQUEST:\nHost: %s | IP: %s\nAsset criticality: %s (%s)\nCommand: `%s`\n\nProvide a forensic report. Start with the decision line.",
		req.Hostname, req.IPAddress, req.Criticality, hours, req.Command)
}
