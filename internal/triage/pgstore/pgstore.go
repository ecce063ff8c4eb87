// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/soarbridge/internal/triage/pgstore")

// Store persists actor records in the actor_memory table. The schema is
// owned by the postgres package migrations.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-migrated pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

const columns = `ip, case_id, hit_count, verdict, last_seen`

// Get retrieves the record for ip.
func (s *Store) Get(ctx context.Context, ip string) (*triage.Record, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	r, err := scanRecord(s.pool.QueryRow(ctx, `SELECT `+columns+` FROM actor_memory WHERE ip = $1`, ip))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("get %s: %w", ip, err))
	}
	return r, true, nil
}

// Touch upserts the record and increments hit_count in one statement.
func (s *Store) Touch(ctx context.Context, ip, caseID string, v triage.Verdict, at time.Time) (*triage.Record, error) {
	ctx, span := startSpan(ctx, "pgstore.Touch", "INSERT")
	defer span.End()

	const q = `
INSERT INTO actor_memory (ip, case_id, hit_count, verdict, last_seen)
VALUES ($1, $2, 1, $3, $4)
ON CONFLICT (ip) DO UPDATE SET
    case_id   = EXCLUDED.case_id,
    hit_count = actor_memory.hit_count + 1,
    verdict   = EXCLUDED.verdict,
    last_seen = EXCLUDED.last_seen
RETURNING ` + columns

	r, err := scanRecord(s.pool.QueryRow(ctx, q, ip, caseID, string(v), at.UTC()))
	if err != nil {
		return nil, fail(span, fmt.Errorf("touch %s: %w", ip, err))
	}
	span.SetAttributes(attribute.Int("soar.hit_count", r.HitCount))
	return r, nil
}

// Put overwrites the record for r.IP.
func (s *Store) Put(ctx context.Context, r *triage.Record) error {
	ctx, span := startSpan(ctx, "pgstore.Put", "INSERT")
	defer span.End()

	const q = `
INSERT INTO actor_memory (ip, case_id, hit_count, verdict, last_seen)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (ip) DO UPDATE SET
    case_id   = EXCLUDED.case_id,
    hit_count = EXCLUDED.hit_count,
    verdict   = EXCLUDED.verdict,
    last_seen = EXCLUDED.last_seen`

	if _, err := s.pool.Exec(ctx, q, r.IP, r.CaseID, r.HitCount, string(r.Verdict), r.LastSeen.UTC()); err != nil {
		return fail(span, fmt.Errorf("put %s: %w", r.IP, err))
	}
	return nil
}

func scanRecord(row pgx.Row) (*triage.Record, error) {
	var (
		r       triage.Record
		verdict string
	)
	if err := row.Scan(&r.IP, &r.CaseID, &r.HitCount, &verdict, &r.LastSeen); err != nil {
		return nil, err
	}
	r.Verdict = triage.Verdict(verdict)
	return &r, nil
}
