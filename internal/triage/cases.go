package triage

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/soarbridge/internal/asset"
)

// Case priorities, named as the ticketing system expects them.
const (
	PriorityHighest = "Highest"
	PriorityHigh    = "High"
	PriorityMedium  = "Medium"
	PriorityLowest  = "Lowest"
)

// Case labels used in summaries.
const (
	LabelTruePositive = "TP ALERT"
	LabelAutoResolved = "AUTO-RESOLVED"
	LabelInvestigate  = "INVESTIGATE"
)

// Disposition is how a verdict on a given asset gets filed.
type Disposition struct {
	Priority string
	Label    string
	Assign   bool
}

// Route derives priority, label and assignment from verdict and asset tier.
//
//	MALICIOUS  + CRITICAL -> Highest, TP ALERT, on-call
//	MALICIOUS  + other    -> High,    TP ALERT, on-call
//	AUTHORIZED + any      -> Lowest,  AUTO-RESOLVED, unassigned
//	SUSPICIOUS + any      -> Medium,  INVESTIGATE, on-call
func Route(v Verdict, ac asset.Context) Disposition {
	switch v {
	case VerdictMalicious:
		p := PriorityHigh
		if ac.IsCritical() {
			p = PriorityHighest
		}
		return Disposition{Priority: p, Label: LabelTruePositive, Assign: true}
	case VerdictAuthorized:
		return Disposition{Priority: PriorityLowest, Label: LabelAutoResolved}
	default:
		return Disposition{Priority: PriorityMedium, Label: LabelInvestigate, Assign: true}
	}
}

// Cases manages case lifecycle in the ticketing system. Every operation is
// fail-soft: failures are logged and reported as values.
type Cases struct {
	ticketing Ticketing
	archiveID string
	analystID string
	logger    log.Logger
}

// NewCases creates a lifecycle manager. archiveID is the workflow transition
// that moves a case to its archived state; analystID is the on-call account.
func NewCases(t Ticketing, archiveID, analystID string, logger log.Logger) *Cases {
	if logger == nil {
		logger = log.Nop()
	}
	return &Cases{
		ticketing: t,
		archiveID: archiveID,
		analystID: analystID,
		logger:    logger,
	}
}

// Draft builds the case for a classified incident.
func (c *Cases) Draft(inc *Incident, redactedCmd string, ac asset.Context, v Verdict, report string) *CaseDraft {
	d := Route(v, ac)
	draft := &CaseDraft{
		Summary:  fmt.Sprintf("[%s] %s", d.Label, inc.Hostname),
		Priority: d.Priority,
		Description: Document{
			{Heading: "AI Report", Body: strings.TrimSpace(report)},
			{Heading: "Signal", Body: fmt.Sprintf("Host: %s\nIP: %s\nSeverity: %s\nVerdict: %s", inc.Hostname, inc.IPAddress, inc.Severity, v)},
			{Heading: "Command", Body: redactedCmd, Code: true},
			{Heading: "Asset Context", Body: fmt.Sprintf("Criticality: %s\nOwner: %s\nDepartment: %s\nBusiness hours: %t", ac.Criticality, ac.Owner, ac.Department, ac.IsBusinessHours)},
		},
	}
	if d.Assign {
		draft.AssigneeID = c.analystID
	}
	return draft
}

// Open creates a case and returns its key. ok is false when the case could
// not be recorded; callers proceed without it.
func (c *Cases) Open(ctx context.Context, draft *CaseDraft) (key string, ok bool) {
	if c.ticketing == nil {
		c.logger.Warn(ctx, "no ticketing backend configured, case not recorded", "summary", draft.Summary)
		return "", false
	}
	key, err := c.ticketing.CreateIssue(ctx, draft)
	if err != nil {
		c.logger.Error(ctx, err, "case creation failed", "summary", draft.Summary, "priority", draft.Priority)
		return "", false
	}
	if key == "" {
		c.logger.Warn(ctx, "case creation returned no key", "summary", draft.Summary)
		return "", false
	}
	return key, true
}

// Comment appends text to an existing case.
func (c *Cases) Comment(ctx context.Context, key string, body Document) Effect {
	e := Effect{Name: EffectComment}
	if c.ticketing == nil || key == "" {
		e.Skipped = true
		return e
	}
	if e.Err = c.ticketing.AddComment(ctx, key, body); e.Err != nil {
		c.logger.Error(ctx, e.Err, "case comment failed", "case_id", key)
	}
	return e
}

// Archive moves a case through the archive transition.
func (c *Cases) Archive(ctx context.Context, key string) Effect {
	e := Effect{Name: EffectArchive}
	if c.ticketing == nil || key == "" || c.archiveID == "" {
		e.Skipped = true
		c.logger.Warn(ctx, "archive skipped", "case_id", key, "archive_transition", c.archiveID)
		return e
	}
	if e.Err = c.ticketing.Transition(ctx, key, c.archiveID); e.Err != nil {
		c.logger.Error(ctx, e.Err, "case archive failed", "case_id", key, "archive_transition", c.archiveID)
	}
	return e
}
