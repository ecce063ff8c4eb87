package asset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

const testCSV = `ip_address,hostname,criticality,owner,department
10.0.5.5,dxb-sql-prod,CRITICAL,dba-team,Finance
10.0.9.1,backup-gw,Standard,infra,IT
10.0.7.7,hr-laptop,,,
`

var dubai = time.FixedZone("GST", 4*3600)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func fixedClock(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 2, hour, 30, 0, 0, dubai)
	}
}

func TestResolve_Match(t *testing.T) {
	t.Parallel()

	r := NewResolver(context.Background(), Options{
		Path:     writeFile(t, "assets.csv", testCSV),
		Location: dubai,
		Now:      fixedClock(10),
	}, log.Nop())

	got := r.Resolve(context.Background(), "10.0.5.5")
	want := Context{
		Hostname:        "dxb-sql-prod",
		Criticality:     "CRITICAL",
		Owner:           "dba-team",
		Department:      "Finance",
		IsBusinessHours: true,
	}
	if got != want {
		t.Errorf("Resolve = %+v, want %+v", got, want)
	}
	if !got.IsCritical() {
		t.Error("expected CRITICAL asset to report IsCritical")
	}
}

func TestResolve_BusinessHoursWindow(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "assets.csv", testCSV)
	tests := []struct {
		hour int
		want bool
	}{
		{7, false},
		{8, true},
		{13, true},
		{18, true},
		{19, false},
		{2, false},
	}
	for _, tt := range tests {
		r := NewResolver(context.Background(), Options{
			Path:     path,
			Location: dubai,
			Now:      fixedClock(tt.hour),
		}, log.Nop())
		if got := r.Resolve(context.Background(), "10.0.9.1").IsBusinessHours; got != tt.want {
			t.Errorf("hour %d: IsBusinessHours = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestResolve_ConfiguredHours(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "assets.csv", testCSV)
	tests := []struct {
		name  string
		hours Hours
		hour  int
		want  bool
	}{
		{"midnight only at 00", Hours{Start: 0, End: 0}, 0, true},
		{"midnight only at 10", Hours{Start: 0, End: 0}, 10, false},
		{"night shift", Hours{Start: 20, End: 23}, 22, true},
		{"night shift morning", Hours{Start: 20, End: 23}, 9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewResolver(context.Background(), Options{
				Path:     path,
				Location: dubai,
				Hours:    &tt.hours,
				Now:      fixedClock(tt.hour),
			}, log.Nop())
			if got := r.Resolve(context.Background(), "10.0.9.1").IsBusinessHours; got != tt.want {
				t.Errorf("IsBusinessHours = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve_EvaluatesInOperatingZone(t *testing.T) {
	t.Parallel()

	// 05:00 UTC is 09:00 in GST.
	r := NewResolver(context.Background(), Options{
		Path:     writeFile(t, "assets.csv", testCSV),
		Location: dubai,
		Now:      func() time.Time { return time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC) },
	}, log.Nop())
	if !r.Resolve(context.Background(), "10.0.5.5").IsBusinessHours {
		t.Error("expected 05:00 UTC to be business hours in GST")
	}
}

func TestResolve_UnlistedIPGetsDefault(t *testing.T) {
	t.Parallel()

	r := NewResolver(context.Background(), Options{
		Path: writeFile(t, "assets.csv", testCSV),
		Now:  fixedClock(23),
	}, log.Nop())

	got := r.Resolve(context.Background(), "203.0.113.9")
	if got != Default() {
		t.Errorf("Resolve = %+v, want default %+v", got, Default())
	}
	if got.Criticality != CriticalityStandard || !got.IsBusinessHours || got.Owner != "Unknown" {
		t.Errorf("default context = %+v", got)
	}
}

func TestResolve_BlankFieldsFallBack(t *testing.T) {
	t.Parallel()

	r := NewResolver(context.Background(), Options{
		Path: writeFile(t, "assets.csv", testCSV),
		Now:  fixedClock(10),
	}, log.Nop())

	got := r.Resolve(context.Background(), "10.0.7.7")
	if got.Criticality != CriticalityStandard {
		t.Errorf("Criticality = %q, want %q", got.Criticality, CriticalityStandard)
	}
	if got.Owner != "Unknown" || got.Department != "Unknown" {
		t.Errorf("owner/department = %q/%q, want Unknown", got.Owner, got.Department)
	}
}

func TestResolve_MissingFileNeverFails(t *testing.T) {
	t.Parallel()

	r := NewResolver(context.Background(), Options{
		Path: filepath.Join(t.TempDir(), "nope.csv"),
	}, log.Nop())

	if r.Size() != 0 {
		t.Errorf("Size = %d, want 0", r.Size())
	}
	if got := r.Resolve(context.Background(), "10.0.5.5"); got != Default() {
		t.Errorf("Resolve = %+v, want default", got)
	}
}

func TestLoad_YAML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "assets.yaml", `
assets:
  - ip_address: 10.0.5.5
    hostname: dxb-sql-prod
    criticality: CRITICAL
    owner: dba-team
    department: Finance
  - ip_address: 10.0.5.5
    hostname: shadowed
`)
	recs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1", len(recs))
	}
	if recs["10.0.5.5"].Hostname != "dxb-sql-prod" {
		t.Errorf("hostname = %q, want first row to win", recs["10.0.5.5"].Hostname)
	}
}

func TestLoad_CSVWithoutIPColumn(t *testing.T) {
	t.Parallel()

	_, err := Load(writeFile(t, "bad.csv", "host,owner\na,b\n"))
	if err == nil || !strings.Contains(err.Error(), "ip_address") {
		t.Fatalf("Load err = %v, want missing ip_address column", err)
	}
}

func TestReload_KeepsSnapshotOnError(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "assets.csv", testCSV)
	r := NewResolver(context.Background(), Options{Path: path, Now: fixedClock(10)}, log.Nop())
	if r.Size() != 3 {
		t.Fatalf("Size = %d, want 3", r.Size())
	}

	if err := os.WriteFile(path, []byte("garbage\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background()); err == nil {
		t.Fatal("expected reload error for file without ip_address column")
	}
	if r.Size() != 3 {
		t.Errorf("Size after failed reload = %d, want 3", r.Size())
	}
}

func TestNewReloader_InvalidSchedule(t *testing.T) {
	t.Parallel()

	r := NewResolver(context.Background(), Options{}, log.Nop())
	if _, err := NewReloader("not a schedule", r, log.Nop()); err == nil {
		t.Fatal("expected error for invalid cron schedule")
	}
	rl, err := NewReloader("@every 1h", r, log.Nop())
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	rl.Start()
	if err := rl.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
