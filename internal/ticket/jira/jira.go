// Package jira implements triage.Ticketing on the Jira REST API, plus the
// lookups operators need to configure it (workflow transitions, user ids).
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

// DefaultTimeout bounds each Jira call.
const DefaultTimeout = 10 * time.Second

// Config configures the Jira client.
type Config struct {
	BaseURL    string
	User       string
	Token      string
	ProjectKey string
	IssueType  string

	// APIVersion is "2" (plain-text bodies) or "3" (ADF bodies). Empty means "3".
	APIVersion string
	Timeout    time.Duration
}

// Validate reports missing settings.
func (c Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("jira: base url is required"))
	}
	if c.User == "" || c.Token == "" {
		errs = append(errs, errors.New("jira: user and api token are required"))
	}
	if c.APIVersion != "" && c.APIVersion != "2" && c.APIVersion != "3" {
		errs = append(errs, fmt.Errorf("jira: api version must be 2 or 3, got %q", c.APIVersion))
	}
	return errors.Join(errs...)
}

// Client talks to one Jira site.
type Client struct {
	base       string
	user       string
	token      string
	project    string
	issueType  string
	adf        bool
	apiPrefix  string
	httpClient *http.Client
}

// New creates a Jira client. Create a Client per site; it is safe for
// concurrent use.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "3"
	}
	if cfg.IssueType == "" {
		cfg.IssueType = "Task"
	}
	return &Client{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		user:      cfg.User,
		token:     cfg.Token,
		project:   cfg.ProjectKey,
		issueType: cfg.IssueType,
		adf:       cfg.APIVersion == "3",
		apiPrefix: "/rest/api/" + cfg.APIVersion,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// StatusError is a non-success response from Jira.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jira %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (c *Client) body(d triage.Document) any {
	if c.adf {
		return toADF(d)
	}
	return d.Text()
}

type createResponse struct {
	Key string `json:"key"`
}

// CreateIssue implements triage.Ticketing. Only 201 Created counts.
func (c *Client) CreateIssue(ctx context.Context, draft *triage.CaseDraft) (string, error) {
	fields := map[string]any{
		"project":     map[string]string{"key": c.project},
		"summary":     draft.Summary,
		"description": c.body(draft.Description),
		"issuetype":   map[string]string{"name": c.issueType},
		"priority":    map[string]string{"name": draft.Priority},
	}
	if draft.AssigneeID != "" {
		fields["assignee"] = map[string]string{"accountId": draft.AssigneeID}
	}

	var out createResponse
	if err := c.do(ctx, "create issue", http.MethodPost, "/issue", map[string]any{"fields": fields}, http.StatusCreated, &out); err != nil {
		return "", err
	}
	return out.Key, nil
}

// AddComment implements triage.Ticketing.
func (c *Client) AddComment(ctx context.Context, key string, body triage.Document) error {
	path := "/issue/" + url.PathEscape(key) + "/comment"
	return c.do(ctx, "add comment", http.MethodPost, path, map[string]any{"body": c.body(body)}, http.StatusCreated, nil)
}

// Transition implements triage.Ticketing.
func (c *Client) Transition(ctx context.Context, key, transitionID string) error {
	path := "/issue/" + url.PathEscape(key) + "/transitions"
	payload := map[string]any{"transition": map[string]string{"id": transitionID}}
	return c.do(ctx, "transition", http.MethodPost, path, payload, http.StatusNoContent, nil)
}

// TransitionInfo is one workflow transition available on an issue.
type TransitionInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   struct {
		Name string `json:"name"`
	} `json:"to"`
}

// ListTransitions returns the transitions available on key.
func (c *Client) ListTransitions(ctx context.Context, key string) ([]TransitionInfo, error) {
	var out struct {
		Transitions []TransitionInfo `json:"transitions"`
	}
	path := "/issue/" + url.PathEscape(key) + "/transitions"
	if err := c.do(ctx, "list transitions", http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Transitions, nil
}

// User is a Jira account.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	Active       bool   `json:"active"`
}

// SearchUsers finds accounts matching query (name or email).
func (c *Client) SearchUsers(ctx context.Context, query string) ([]User, error) {
	var out []User
	path := "/user/search?query=" + url.QueryEscape(query)
	if err := c.do(ctx, "search users", http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any, want int, out any) error {
	var rdr io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("jira %s: marshal: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+c.apiPrefix+path, rdr)
	if err != nil {
		return fmt.Errorf("jira %s: create request: %w", op, err)
	}
	req.SetBasicAuth(c.user, c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jira %s: %w", op, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("jira %s: read response: %w", op, err)
	}
	if resp.StatusCode != want {
		body := string(b)
		if len(body) > 512 {
			body = body[:512]
		}
		return &StatusError{Op: op, Status: resp.StatusCode, Body: body}
	}
	if out == nil || len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("jira %s: decode response: %w", op, err)
	}
	return nil
}
