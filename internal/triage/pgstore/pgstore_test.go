package pgstore_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/soarbridge/internal/postgres"
	"github.com/linnemanlabs/soarbridge/internal/triage"
	"github.com/linnemanlabs/soarbridge/internal/triage/pgstore"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("SOARBRIDGE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SOARBRIDGE_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("postgres.Migrate: %v", err)
	}
	return pgstore.New(pool)
}

func TestGetMissing(t *testing.T) {
	s := openStore(t)
	_, ok, err := s.Get(context.Background(), "203.0.113.255-missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for unknown ip")
	}
}

func TestTouchCreatesThenIncrements(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	ip := "touch-" + ulid.Make().String()
	now := time.Now().Truncate(time.Microsecond).UTC()

	r, err := s.Touch(ctx, ip, "SEC-1", triage.VerdictMalicious, now)
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if r.HitCount != 1 {
		t.Errorf("hit count = %d, want 1", r.HitCount)
	}

	r, err = s.Touch(ctx, ip, "SEC-1", triage.VerdictMalicious, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if r.HitCount != 2 {
		t.Errorf("hit count = %d, want 2", r.HitCount)
	}

	got, ok, err := s.Get(ctx, ip)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.CaseID != "SEC-1" || got.Verdict != triage.VerdictMalicious {
		t.Errorf("record = %+v", got)
	}
	if !got.LastSeen.Equal(now.Add(time.Minute)) {
		t.Errorf("last seen = %v, want %v", got.LastSeen, now.Add(time.Minute))
	}
}

func TestPutOverwrites(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	ip := "put-" + ulid.Make().String()

	if _, err := s.Touch(ctx, ip, "SEC-1", triage.VerdictSuspicious, time.Now()); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := s.Put(ctx, &triage.Record{IP: ip, CaseID: "SEC-2", HitCount: 1, LastSeen: time.Now(), Verdict: triage.VerdictMalicious}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _, err := s.Get(ctx, ip)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CaseID != "SEC-2" || got.HitCount != 1 {
		t.Errorf("record = %+v", got)
	}
}

func TestTouchConcurrent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	ip := "concurrent-" + ulid.Make().String()

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Touch(ctx, ip, "SEC-7", triage.VerdictMalicious, time.Now()); err != nil {
				t.Errorf("Touch: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _, err := s.Get(ctx, ip)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.HitCount != n {
		t.Errorf("hit count = %d, want %d", got.HitCount, n)
	}
}
