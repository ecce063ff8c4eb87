// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

// Store holds actor records in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	records map[string]*triage.Record // actor ip -> record
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{records: make(map[string]*triage.Record)}
}

// Get retrieves the record for ip. Returns a copy.
func (s *Store) Get(_ context.Context, ip string) (*triage.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[ip]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// Touch increments the hit count for ip under the write lock.
func (s *Store) Touch(_ context.Context, ip, caseID string, v triage.Verdict, at time.Time) (*triage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[ip]
	if !ok {
		r = &triage.Record{IP: ip}
		s.records[ip] = r
	}
	r.HitCount++
	r.CaseID = caseID
	r.Verdict = v
	r.LastSeen = at
	cp := *r
	return &cp, nil
}

// Put stores a copy of r.
func (s *Store) Put(_ context.Context, r *triage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.records[r.IP] = &cp
	return nil
}

// Len reports how many actors are tracked.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
