package triage

import (
	"context"
	"errors"
	"strings"

	"github.com/linnemanlabs/soarbridge/internal/asset"
)

// ErrMalformedReport means the analyst answered but the payload held no usable report.
var ErrMalformedReport = errors.New("analyst returned no verdict report")

// AnalysisRequest is what the analyst sees. Command is already redacted.
type AnalysisRequest struct {
	Hostname        string `json:"hostname"`
	IPAddress       string `json:"ip_address"`
	Command         string `json:"command"`
	Criticality     string `json:"criticality"`
	IsBusinessHours bool   `json:"is_business_hours"`
}

// Analyst is the AI reasoning backend. It returns the free-text report whose
// header carries the verdict marker.
type Analyst interface {
	Analyze(ctx context.Context, req *AnalysisRequest) (string, error)
}

// AssetResolver maps an IP to business context and never fails.
type AssetResolver interface {
	Resolve(ctx context.Context, ip string) asset.Context
}

// Section is one heading plus body of a structured case document.
type Section struct {
	Heading string
	Body    string
	Code    bool
}

// Document is an ordered list of sections; ticketing backends render it as
// plain text or as a structured document.
type Document []Section

// Text renders d as plain text with markdown-style headings.
func (d Document) Text() string {
	var b strings.Builder
	for i, s := range d {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if s.Heading != "" {
			b.WriteString("*" + s.Heading + "*\n")
		}
		if s.Code {
			b.WriteString("{noformat}\n" + s.Body + "\n{noformat}")
			continue
		}
		b.WriteString(s.Body)
	}
	return b.String()
}

// CaseDraft is a case to open in the ticketing system.
type CaseDraft struct {
	Summary     string
	Description Document
	Priority    string
	AssigneeID  string
}

// Ticketing is the case system. Errors are returned raw; Cases decides how
// soft each failure is.
type Ticketing interface {
	CreateIssue(ctx context.Context, draft *CaseDraft) (string, error)
	AddComment(ctx context.Context, key string, body Document) error
	Transition(ctx context.Context, key, transitionID string) error
}

// Containment asks the enforcement agent to isolate an actor.
type Containment interface {
	Contain(ctx context.Context, ip string) error
}

// Notification is the chat summary for a new non-authorized case.
type Notification struct {
	Report   string
	Hostname string
	Priority string
	CaseID   string
	Verdict  Verdict
}

// Notifier posts a Notification to the chat channel.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}
