package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/soarbridge/internal/asset"
	"github.com/linnemanlabs/soarbridge/internal/redact"
)

var tracer = otel.Tracer("github.com/linnemanlabs/soarbridge/internal/triage")

// Hooks receives pipeline events for instrumentation. Nil fields are skipped.
type Hooks struct {
	OnOutcome     func(o *Outcome, duration float64)
	OnAnalystCall func(duration float64, err error)
	OnEffect      func(e Effect)
	OnMemoryError func(op string)
}

// Deps is everything the Service needs, built once at startup. Memory,
// Assets, Analyst and Cases are required; Containment and Notifier may be nil,
// which turns their effects into skips.
type Deps struct {
	Memory      *Memory
	Assets      AssetResolver
	Analyst     Analyst
	Classifier  Classifier
	Cases       *Cases
	Containment Containment
	Notifier    Notifier
	Location    *time.Location
	Logger      log.Logger
	Hooks       Hooks
}

// Service runs the triage pipeline for one incident at a time per actor.
type Service struct {
	memory     *Memory
	assets     AssetResolver
	analyst    Analyst
	classifier Classifier
	cases      *Cases
	contain    Containment
	notifier   Notifier
	loc        *time.Location
	logger     log.Logger
	hooks      Hooks
	locks      *actorLocks
	now        func() time.Time
}

// NewService validates deps and creates a Service.
func NewService(d Deps) *Service {
	if d.Memory == nil || d.Assets == nil || d.Analyst == nil || d.Cases == nil {
		panic(xerrors.New("triage: memory, assets, analyst and cases are required"))
	}
	if d.Classifier == nil {
		d.Classifier = MarkerClassifier{}
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Logger == nil {
		d.Logger = log.Nop()
	}
	if d.Hooks.OnMemoryError != nil {
		d.Memory.onErr = d.Hooks.OnMemoryError
	}
	return &Service{
		memory:     d.Memory,
		assets:     d.Assets,
		analyst:    d.Analyst,
		classifier: d.Classifier,
		cases:      d.Cases,
		contain:    d.Containment,
		notifier:   d.Notifier,
		loc:        d.Location,
		logger:     d.Logger,
		hooks:      d.Hooks,
		locks:      newActorLocks(),
		now:        time.Now,
	}
}

// Actor returns the dedup record for ip.
func (s *Service) Actor(ctx context.Context, ip string) (*Record, bool, error) {
	return s.memory.Get(ctx, ip)
}

// Process runs one incident through the pipeline and always returns an
// Outcome. The run is detached from ctx cancellation: once started it goes to
// completion or until a collaborator times out.
func (s *Service) Process(ctx context.Context, inc *Incident) *Outcome {
	ctx = context.WithoutCancel(ctx)
	start := s.now()
	inc.Normalize()

	out := &Outcome{ID: ulid.Make().String(), State: StateReceived}

	ctx, span := tracer.Start(ctx, "triage.process", trace.WithAttributes(
		attribute.String("soar.incident.id", out.ID),
		attribute.String("soar.actor.ip", inc.IPAddress),
		attribute.String("soar.host", inc.Hostname),
		attribute.String("soar.severity", inc.Severity),
	))
	defer span.End()

	L := s.logger.With("incident_id", out.ID, "actor", inc.IPAddress, "hostname", inc.Hostname)
	L.Info(ctx, "incident received", "severity", inc.Severity)

	unlock := s.locks.lock(inc.IPAddress)
	defer unlock()

	out.State = StateDedupCheck
	lookup := s.memory.CheckDuplicate(ctx, inc.IPAddress)
	if lookup.Known() {
		s.deduplicate(ctx, L, inc, lookup.Record, out)
	} else {
		s.triage(ctx, L, inc, lookup.Stale, out)
	}

	span.SetAttributes(
		attribute.String("soar.status", string(out.Status)),
		attribute.String("soar.state", string(out.State)),
		attribute.String("soar.verdict", string(out.Verdict)),
		attribute.String("soar.case.id", out.CaseID),
	)
	if out.Status == StatusError {
		span.SetStatus(codes.Error, out.ErrorCode)
	}

	dur := time.Since(start).Seconds()
	if s.hooks.OnOutcome != nil {
		s.hooks.OnOutcome(out, dur)
	}
	L.Info(ctx, "incident finished",
		"status", out.Status,
		"state", out.State,
		"verdict", out.Verdict,
		"case_id", out.CaseID,
		"hit_count", out.HitCount,
		"duration", dur,
	)
	return out
}

// deduplicate handles a known actor: comment on the open case, bump the
// counter, and re-assert containment for repeat hits on critical assets.
// No new case is ever created here.
func (s *Service) deduplicate(ctx context.Context, L log.Logger, inc *Incident, rec *Record, out *Outcome) {
	out.State = StateDeduplicated
	out.Status = StatusDeduplicated
	out.CaseID = rec.CaseID
	out.Verdict = rec.Verdict
	out.HitCount = rec.HitCount

	L.Info(ctx, "repeat actor, appending to open case", "case_id", rec.CaseID, "hits", rec.HitCount+1)

	out.Effects = append(out.Effects, s.track(s.cases.Comment(ctx, rec.CaseID, recurringComment(inc, s.now().In(s.loc)))))

	updated, err := s.memory.UpdateIncident(ctx, inc.IPAddress, rec.CaseID, rec.Verdict)
	if err != nil {
		L.Error(ctx, err, "incident memory update failed", "case_id", rec.CaseID)
	} else {
		out.HitCount = updated.HitCount
	}

	if rec.Verdict != VerdictAuthorized {
		ac := s.assets.Resolve(ctx, inc.IPAddress)
		if ac.IsCritical() {
			L.Warn(ctx, "repeat hit on critical asset, re-asserting containment", "case_id", rec.CaseID)
			out.Effects = append(out.Effects, s.containActor(ctx, inc.IPAddress))
		}
	}
}

// triage handles an actor without an open case.
func (s *Service) triage(ctx context.Context, L log.Logger, inc *Incident, stale *Record, out *Outcome) {
	if stale != nil {
		L.Info(ctx, "dedup record outside window, opening a new case", "previous_case_id", stale.CaseID, "last_seen", stale.LastSeen)
	}

	out.State = StateEnriched
	ac := s.assets.Resolve(ctx, inc.IPAddress)

	out.State = StateRedacted
	cmd := redact.Redact(inc.Command)

	report, err := s.analyze(ctx, &AnalysisRequest{
		Hostname:        inc.Hostname,
		IPAddress:       inc.IPAddress,
		Command:         cmd,
		Criticality:     ac.Criticality,
		IsBusinessHours: ac.IsBusinessHours,
	})
	if err != nil {
		out.State = StateError
		out.Status = StatusError
		out.ErrorCode = CodeAnalystUnavailable
		if errors.Is(err, ErrMalformedReport) {
			out.ErrorCode = CodeAnalystBadResponse
		}
		L.Error(ctx, err, "analyst call failed, aborting", "code", out.ErrorCode)
		return
	}

	out.State = StateClassified
	out.Verdict = s.classifier.Classify(report)
	L.Info(ctx, "incident classified", "verdict", out.Verdict, "criticality", ac.Criticality)

	s.act(ctx, L, inc, cmd, ac, report, stale, out)
	out.State = StateActioned
	out.Status = StatusComplete
}

// act dispatches the external actions for a classified incident.
func (s *Service) act(ctx context.Context, L log.Logger, inc *Incident, cmd string, ac asset.Context, report string, stale *Record, out *Outcome) {
	if out.Verdict == VerdictMalicious {
		out.Effects = append(out.Effects, s.containActor(ctx, inc.IPAddress))
	}

	draft := s.cases.Draft(inc, cmd, ac, out.Verdict, report)
	key, ok := s.cases.Open(ctx, draft)
	if !ok {
		L.Warn(ctx, "proceeding without a case", "verdict", out.Verdict)
		return
	}
	out.CaseID = key
	L.Info(ctx, "case opened", "case_id", key, "priority", draft.Priority)

	if out.Verdict == VerdictAuthorized {
		out.Effects = append(out.Effects, s.track(s.cases.Archive(ctx, key)))
	} else {
		out.Effects = append(out.Effects, s.notify(ctx, &Notification{
			Report:   report,
			Hostname: inc.Hostname,
			Priority: draft.Priority,
			CaseID:   key,
			Verdict:  out.Verdict,
		}))
	}

	rec, err := s.memory.RecordCase(ctx, inc.IPAddress, key, out.Verdict, stale)
	if err != nil {
		L.Error(ctx, err, "incident memory write failed, actor will not be deduplicated", "case_id", key)
		return
	}
	out.HitCount = rec.HitCount
}

func (s *Service) analyze(ctx context.Context, req *AnalysisRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "analyst.analyze", trace.WithAttributes(
		attribute.String("soar.asset.criticality", req.Criticality),
		attribute.Bool("soar.asset.business_hours", req.IsBusinessHours),
	))
	defer span.End()

	start := time.Now()
	report, err := s.analyst.Analyze(ctx, req)
	if err == nil && strings.TrimSpace(report) == "" {
		err = ErrMalformedReport
	}
	if s.hooks.OnAnalystCall != nil {
		s.hooks.OnAnalystCall(time.Since(start).Seconds(), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("analyze: %w", err)
	}
	span.SetAttributes(attribute.Int("soar.report.bytes", len(report)))
	return report, nil
}

func (s *Service) containActor(ctx context.Context, ip string) Effect {
	e := Effect{Name: EffectContainment}
	if s.contain == nil {
		e.Skipped = true
		return s.track(e)
	}
	ctx, span := tracer.Start(ctx, "containment.dispatch")
	defer span.End()
	if e.Err = s.contain.Contain(ctx, ip); e.Err != nil {
		span.RecordError(e.Err)
		s.logger.Error(ctx, e.Err, "containment dispatch failed", "actor", ip)
	} else {
		s.logger.Warn(ctx, "containment dispatched", "actor", ip)
	}
	return s.track(e)
}

func (s *Service) notify(ctx context.Context, n *Notification) Effect {
	e := Effect{Name: EffectNotify}
	if s.notifier == nil {
		e.Skipped = true
		return s.track(e)
	}
	ctx, span := tracer.Start(ctx, "notify.send")
	defer span.End()
	if e.Err = s.notifier.Notify(ctx, n); e.Err != nil {
		span.RecordError(e.Err)
		s.logger.Error(ctx, e.Err, "notification failed", "case_id", n.CaseID)
	}
	return s.track(e)
}

func (s *Service) track(e Effect) Effect {
	if s.hooks.OnEffect != nil {
		s.hooks.OnEffect(e)
	}
	return e
}

func recurringComment(inc *Incident, at time.Time) Document {
	return Document{
		{Heading: "Recurring event", Body: fmt.Sprintf("%s (%s) targeted again at %s.", inc.Hostname, inc.IPAddress, at.Format("2006-01-02 15:04:05 MST"))},
		{Heading: "Command", Body: redact.Redact(inc.Command), Code: true},
	}
}
