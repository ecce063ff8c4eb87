package triage

import (
	"context"
	"time"
)

// Store persists dedup records keyed by actor IP. Implementations must make
// Touch an atomic read-modify-write for a single key.
type Store interface {
	// Get returns the record for ip; ok is false when the ip was never seen.
	Get(ctx context.Context, ip string) (*Record, bool, error)

	// Touch increments the hit count (creating the record at 1), sets the case
	// id and verdict, and stamps last_seen with at.
	Touch(ctx context.Context, ip, caseID string, verdict Verdict, at time.Time) (*Record, error)

	// Put overwrites the record for r.IP.
	Put(ctx context.Context, r *Record) error
}
