// Package filestore provides a JSON-file implementation of triage.Store.
//
// The file is a single object keyed by actor IP:
//
//	{"10.0.0.5": {"count": 2, "ticket": "SEC-12", "last_seen": "...", "verdict": "MALICIOUS"}}
//
// Every write rewrites the whole file through a temp file and rename, so a
// crash never leaves a half-written document behind. A file that no longer
// decodes is moved aside to <path>.corrupt-<timestamp> by the next write,
// which then starts from an empty document.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

// quarantineLayout stamps the name of a corrupt state file moved aside.
const quarantineLayout = "20060102T150405.000000000Z"

// ErrCorrupt is returned by Get when the state file does not decode.
var ErrCorrupt = errors.New("state file corrupt")

// legacyTimeLayout is how older state files stamp last_seen.
const legacyTimeLayout = "2006-01-02 15:04:05.999999"

type entry struct {
	Count    int    `json:"count"`
	Ticket   string `json:"ticket"`
	LastSeen string `json:"last_seen"`
	Verdict  string `json:"verdict,omitempty"`
}

// Store persists actor records to one JSON file.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// New returns a Store backed by path. The file and its directory are created
// on first write.
func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Get retrieves the record for ip. A missing file means no records; a
// corrupt file is an error wrapping ErrCorrupt.
func (s *Store) Get(_ context.Context, ip string) (*triage.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, false, err
	}
	e, ok := state[ip]
	if !ok {
		return nil, false, nil
	}
	return toRecord(ip, e), true, nil
}

// Touch increments the hit count for ip and rewrites the file.
func (s *Store) Touch(_ context.Context, ip, caseID string, v triage.Verdict, at time.Time) (*triage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadForWrite()
	if err != nil {
		return nil, err
	}
	e := state[ip]
	e.Count++
	e.Ticket = caseID
	e.Verdict = string(v)
	e.LastSeen = at.Format(time.RFC3339Nano)
	state[ip] = e
	if err := s.save(state); err != nil {
		return nil, err
	}
	return toRecord(ip, e), nil
}

// Put overwrites the record for r.IP and rewrites the file.
func (s *Store) Put(_ context.Context, r *triage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadForWrite()
	if err != nil {
		return err
	}
	state[r.IP] = entry{
		Count:    r.HitCount,
		Ticket:   r.CaseID,
		LastSeen: r.LastSeen.Format(time.RFC3339Nano),
		Verdict:  string(r.Verdict),
	}
	return s.save(state)
}

func (s *Store) load() (map[string]entry, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]entry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	state := make(map[string]entry)
	if len(b) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("decode state file %s: %w: %w", s.path, ErrCorrupt, err)
	}
	return state, nil
}

// loadForWrite is load for the write path. A corrupt file is renamed aside
// and replaced by an empty document so dedup recovers on the next save.
func (s *Store) loadForWrite() (map[string]entry, error) {
	state, err := s.load()
	if !errors.Is(err, ErrCorrupt) {
		return state, err
	}
	aside := s.path + ".corrupt-" + s.now().UTC().Format(quarantineLayout)
	if rerr := os.Rename(s.path, aside); rerr != nil {
		return nil, fmt.Errorf("quarantine corrupt state file: %w", rerr)
	}
	return make(map[string]entry), nil
}

func (s *Store) save(state map[string]entry) error {
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func toRecord(ip string, e entry) *triage.Record {
	return &triage.Record{
		IP:       ip,
		CaseID:   e.Ticket,
		HitCount: e.Count,
		LastSeen: parseTime(e.LastSeen),
		Verdict:  triage.Verdict(e.Verdict),
	}
}

// parseTime accepts RFC 3339 and the legacy local-time layout. Unparseable
// values become the zero time, which a bounded dedup window treats as stale.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(legacyTimeLayout, s, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
