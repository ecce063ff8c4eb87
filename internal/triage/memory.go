package triage

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// Lookup is the result of a dedup check.
type Lookup struct {
	// Record is set when the actor has an open case inside the dedup window.
	Record *Record

	// Stale is set when a record exists but fell outside the dedup window.
	Stale *Record
}

// Known reports whether the actor should be deduplicated.
func (l Lookup) Known() bool { return l.Record != nil }

// Memory is the incident memory over a Store. Reads fail open: a store error
// behaves like a never-seen actor.
type Memory struct {
	store  Store
	window time.Duration
	now    func() time.Time
	logger log.Logger
	onErr  func(op string)
}

// NewMemory wraps store. window bounds how long a record absorbs repeat
// incidents; zero means forever.
func NewMemory(store Store, window time.Duration, logger log.Logger) *Memory {
	if logger == nil {
		logger = log.Nop()
	}
	return &Memory{
		store:  store,
		window: window,
		now:    time.Now,
		logger: logger,
		onErr:  func(string) {},
	}
}

// CheckDuplicate returns the open record for actor, if any.
func (m *Memory) CheckDuplicate(ctx context.Context, actor string) Lookup {
	rec, ok, err := m.store.Get(ctx, actor)
	if err != nil {
		m.onErr("get")
		m.logger.Error(ctx, err, "incident memory unreadable, treating actor as new", "actor", actor)
		return Lookup{}
	}
	if !ok || rec == nil || rec.CaseID == "" {
		return Lookup{}
	}
	if m.window > 0 && m.now().Sub(rec.LastSeen) > m.window {
		return Lookup{Stale: rec}
	}
	return Lookup{Record: rec}
}

// UpdateIncident bumps the hit count for actor and points it at caseID.
func (m *Memory) UpdateIncident(ctx context.Context, actor, caseID string, verdict Verdict) (*Record, error) {
	rec, err := m.store.Touch(ctx, actor, caseID, verdict, m.now())
	if err != nil {
		m.onErr("touch")
		return nil, err
	}
	return rec, nil
}

// RecordCase stores a freshly created case for actor. A stale record is
// replaced so the hit count restarts at one; otherwise this is UpdateIncident.
func (m *Memory) RecordCase(ctx context.Context, actor, caseID string, verdict Verdict, stale *Record) (*Record, error) {
	if stale == nil {
		return m.UpdateIncident(ctx, actor, caseID, verdict)
	}
	rec := &Record{
		IP:       actor,
		CaseID:   caseID,
		HitCount: 1,
		LastSeen: m.now(),
		Verdict:  verdict,
	}
	if err := m.store.Put(ctx, rec); err != nil {
		m.onErr("put")
		return nil, err
	}
	return rec, nil
}

// Get exposes the raw record for actor, for lookups outside the pipeline.
func (m *Memory) Get(ctx context.Context, actor string) (*Record, bool, error) {
	return m.store.Get(ctx, actor)
}
