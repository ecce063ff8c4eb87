package triage

import (
	"strings"
	"time"
)

// DefaultSeverity is applied when an incident arrives without one.
const DefaultSeverity = "Low"

// Incident is one inbound security signal. It lives for a single pipeline run.
type Incident struct {
	Hostname  string `json:"hostname"`
	IPAddress string `json:"ip_address"`
	Command   string `json:"command"`
	Severity  string `json:"severity"`
}

// Normalize trims fields and fills the default severity.
func (i *Incident) Normalize() {
	i.Hostname = strings.TrimSpace(i.Hostname)
	i.IPAddress = strings.TrimSpace(i.IPAddress)
	i.Severity = strings.TrimSpace(i.Severity)
	if i.Severity == "" {
		i.Severity = DefaultSeverity
	}
}

// Verdict is the tri-state classification of an analyst report.
type Verdict string

const (
	VerdictAuthorized Verdict = "AUTHORIZED"
	VerdictMalicious  Verdict = "MALICIOUS"
	VerdictSuspicious Verdict = "SUSPICIOUS"
)

// Record is the persisted dedup entry for one actor IP. At most one open
// CaseID exists per IP.
type Record struct {
	IP       string    `json:"ip"`
	CaseID   string    `json:"case_id"`
	HitCount int       `json:"hit_count"`
	LastSeen time.Time `json:"last_seen"`
	Verdict  Verdict   `json:"verdict,omitempty"`
}

// Status is the caller-visible result of a pipeline run.
type Status string

const (
	StatusComplete     Status = "Complete"
	StatusDeduplicated Status = "Deduplicated"
	StatusError        Status = "Error"
)

// State tracks where an incident is in the pipeline.
type State string

const (
	StateReceived     State = "received"
	StateDedupCheck   State = "dedup_check"
	StateDeduplicated State = "deduplicated"
	StateEnriched     State = "enriched"
	StateRedacted     State = "redacted"
	StateClassified   State = "classified"
	StateActioned     State = "actioned"
	StateError        State = "error"
)

// Internal error codes attached to StatusError outcomes.
const (
	CodeAnalystUnavailable = "analyst_unavailable"
	CodeAnalystBadResponse = "analyst_bad_response"
)

// Effect is the outcome of a best-effort side effect. A failed Effect is
// logged and counted but never turns into a pipeline error.
type Effect struct {
	Name    string
	Skipped bool
	Err     error
}

// OK reports whether the effect ran and succeeded.
func (e Effect) OK() bool { return !e.Skipped && e.Err == nil }

func (e Effect) outcome() string {
	switch {
	case e.Skipped:
		return "skipped"
	case e.Err != nil:
		return "error"
	default:
		return "ok"
	}
}

// Effect names.
const (
	EffectContainment = "containment"
	EffectNotify      = "notify"
	EffectArchive     = "archive"
	EffectComment     = "comment"
)

// Outcome is the full result of one pipeline run. Callers outside the
// package only need Status and CaseID.
type Outcome struct {
	ID        string
	Status    Status
	State     State
	CaseID    string
	Verdict   Verdict
	HitCount  int
	ErrorCode string
	Effects   []Effect
}

// Effect returns the first recorded effect with the given name.
func (o *Outcome) Effect(name string) (Effect, bool) {
	for _, e := range o.Effects {
		if e.Name == name {
			return e, true
		}
	}
	return Effect{}, false
}
