// Package asset resolves an actor IP to business context from a static
// inventory file.
package asset

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// Criticality tiers used by the routing table. Inventories may carry other
// values; comparison is case-insensitive.
const (
	CriticalityStandard = "Standard"
	CriticalityHigh     = "HIGH"
	CriticalityCritical = "CRITICAL"
)

const unknown = "Unknown"

// Context is the business metadata for one IP, recomputed per request.
type Context struct {
	Hostname        string `json:"hostname,omitempty"`
	Criticality     string `json:"criticality"`
	Owner           string `json:"owner"`
	Department      string `json:"department"`
	IsBusinessHours bool   `json:"is_business_hours"`
}

// IsCritical reports whether the asset sits in the CRITICAL tier.
func (c Context) IsCritical() bool {
	return strings.EqualFold(c.Criticality, CriticalityCritical)
}

// Default is returned for unlisted IPs and on any inventory error.
func Default() Context {
	return Context{
		Criticality:     CriticalityStandard,
		Owner:           unknown,
		Department:      unknown,
		IsBusinessHours: true,
	}
}

// Record is one inventory row.
type Record struct {
	IPAddress   string `yaml:"ip_address"`
	Hostname    string `yaml:"hostname"`
	Criticality string `yaml:"criticality"`
	Owner       string `yaml:"owner"`
	Department  string `yaml:"department"`
}

// Hours is an inclusive window of wall-clock hours, e.g. 8..18.
type Hours struct {
	Start int
	End   int
}

// DefaultHours is the business-hours window used when none is configured.
var DefaultHours = Hours{Start: 8, End: 18}

// Contains reports whether hour h falls in the window.
func (h Hours) Contains(hour int) bool {
	return hour >= h.Start && hour <= h.End
}

// Options configures a Resolver.
type Options struct {
	Path     string
	Location *time.Location
	// Hours is the business-hours window; nil means DefaultHours.
	Hours *Hours
	Now   func() time.Time
}

// Resolver maps IPs to Context. Safe for concurrent use: the inventory is an
// immutable snapshot swapped atomically on Reload.
type Resolver struct {
	path   string
	loc    *time.Location
	hours  Hours
	now    func() time.Time
	logger log.Logger

	inv atomic.Pointer[map[string]Record]
}

// NewResolver builds a resolver and performs the initial load. A failed load
// is logged and leaves an empty inventory so every lookup gets Default.
func NewResolver(ctx context.Context, opts Options, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.Nop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	hours := DefaultHours
	if opts.Hours != nil {
		hours = *opts.Hours
	}
	r := &Resolver{
		path:   opts.Path,
		loc:    opts.Location,
		hours:  hours,
		now:    opts.Now,
		logger: logger,
	}
	empty := map[string]Record{}
	r.inv.Store(&empty)
	if err := r.Reload(ctx); err != nil {
		logger.Error(ctx, err, "asset inventory load failed, using defaults", "path", opts.Path)
	}
	return r
}

// Reload re-reads the inventory file. On error the previous snapshot stays.
func (r *Resolver) Reload(ctx context.Context) error {
	if r.path == "" {
		return nil
	}
	records, err := Load(r.path)
	if err != nil {
		return err
	}
	r.inv.Store(&records)
	r.logger.Info(ctx, "asset inventory loaded", "path", r.path, "assets", len(records))
	return nil
}

// Size returns the number of assets in the current snapshot.
func (r *Resolver) Size() int {
	return len(*r.inv.Load())
}

// Resolve returns the context for ip. It never fails: unlisted IPs get Default.
func (r *Resolver) Resolve(_ context.Context, ip string) Context {
	rec, ok := (*r.inv.Load())[strings.TrimSpace(ip)]
	if !ok {
		return Default()
	}
	c := Context{
		Hostname:        rec.Hostname,
		Criticality:     orDefault(rec.Criticality, CriticalityStandard),
		Owner:           orDefault(rec.Owner, unknown),
		Department:      orDefault(rec.Department, unknown),
		IsBusinessHours: r.hours.Contains(r.now().In(r.loc).Hour()),
	}
	return c
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
