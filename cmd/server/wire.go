package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/soarbridge/internal/analyst/claude"
	"github.com/linnemanlabs/soarbridge/internal/analyst/httpanalyst"
	"github.com/linnemanlabs/soarbridge/internal/asset"
	sc "github.com/linnemanlabs/soarbridge/internal/cfg"
	"github.com/linnemanlabs/soarbridge/internal/contain"
	"github.com/linnemanlabs/soarbridge/internal/notify/slack"
	"github.com/linnemanlabs/soarbridge/internal/postgres"
	"github.com/linnemanlabs/soarbridge/internal/ticket/jira"
	"github.com/linnemanlabs/soarbridge/internal/triage"
	"github.com/linnemanlabs/soarbridge/internal/triage/filestore"
	"github.com/linnemanlabs/soarbridge/internal/triage/memstore"
	"github.com/linnemanlabs/soarbridge/internal/triage/pgstore"
	"github.com/linnemanlabs/soarbridge/internal/triage/redisstore"
)

// openStore builds the configured incident memory backend. The returned
// close func is always non-nil.
func openStore(ctx context.Context, c *sc.Config, reg prometheus.Registerer, L log.Logger) (triage.Store, func(), error) {
	noop := func() {}

	switch c.StateBackend {
	case sc.StatePostgres:
		pool, err := postgres.NewPool(ctx, c.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("postgres pool: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("postgres migrate: %w", err)
		}

		dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "soarbridge_db_query_duration_seconds",
			Help:    "Duration of individual database queries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "route", "outcome"})
		reg.MustRegister(dbQueryDuration)
		postgres.SetQueryObserver(postgres.QueryObserverFunc(
			func(_ context.Context, op, route, outcome string, dur time.Duration) {
				dbQueryDuration.WithLabelValues(op, route, outcome).Observe(dur.Seconds())
			},
		))

		L.Info(ctx, "using postgres store")
		return pgstore.New(pool), pool.Close, nil

	case sc.StateRedis:
		rs, err := redisstore.New(ctx, redisstore.Config{
			Addr:      c.RedisAddr,
			Password:  c.RedisPassword,
			DB:        c.RedisDB,
			KeyPrefix: c.RedisPrefix,
			TTL:       c.DedupWindow,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("redis store: %w", err)
		}
		L.Info(ctx, "using redis store", "addr", c.RedisAddr)
		return rs, func() { _ = rs.Close() }, nil

	case sc.StateMemory:
		L.Info(ctx, "using in-memory store, dedup state is lost on restart")
		return memstore.New(), noop, nil

	default:
		fs := filestore.New(c.StateFile)
		L.Info(ctx, "using file store", "path", fs.Path())
		return fs, noop, nil
	}
}

func newAnalyst(c *sc.Config, p *sc.Policy) (triage.Analyst, error) {
	if c.AnalystBackend == sc.AnalystClaude {
		knowledge, err := p.Knowledge()
		if err != nil {
			return nil, err
		}
		return claude.New(claude.Config{
			APIKey:  c.ClaudeAPIKey,
			Model:   c.ClaudeModel,
			OrgName: p.System.OrgName,
			Policy:  knowledge,
		}), nil
	}
	return httpanalyst.New(p.Network.AnalystEndpoint, 0), nil
}

// newService wires the pipeline collaborators. Containment and chat stay
// off when their endpoints are unset.
func newService(ctx context.Context, c *sc.Config, p *sc.Policy, store triage.Store, assets triage.AssetResolver, hooks triage.Hooks, L log.Logger) (*triage.Service, error) {
	analyst, err := newAnalyst(c, p)
	if err != nil {
		return nil, err
	}
	L.Info(ctx, "initialized analyst", "backend", c.AnalystBackend)

	tickets := jira.New(jira.Config{
		BaseURL:    c.JiraURL,
		User:       c.JiraUser,
		Token:      c.JiraAPIToken,
		ProjectKey: p.Jira.ProjectKey,
		IssueType:  p.Jira.Defaults.IssueType,
		APIVersion: c.JiraAPIVersion,
	})
	if p.Jira.Transitions.ArchiveID == "" {
		L.Warn(ctx, "no archive transition configured, authorized cases stay open")
	}

	var containment triage.Containment
	if p.Network.AgentEndpoint != "" {
		containment = contain.New(p.Network.AgentEndpoint, 0)
		L.Info(ctx, "containment enabled", "endpoint", p.Network.AgentEndpoint)
	}

	var notifier triage.Notifier
	if c.SlackWebhookURL != "" {
		notifier = slack.New(c.SlackWebhookURL)
		L.Info(ctx, "notifier enabled", "type", "slack")
	}

	return triage.NewService(triage.Deps{
		Memory:      triage.NewMemory(store, c.DedupWindow, L),
		Assets:      assets,
		Analyst:     analyst,
		Cases:       triage.NewCases(tickets, p.Jira.Transitions.ArchiveID, c.JiraAnalystID, L),
		Containment: containment,
		Notifier:    notifier,
		Location:    p.Location(),
		Logger:      L,
		Hooks:       hooks,
	}), nil
}

// newAssets loads the inventory and, when a schedule is set, starts the
// reloader. The returned stop func is always non-nil.
func newAssets(ctx context.Context, c *sc.Config, p *sc.Policy, L log.Logger) (*asset.Resolver, func(context.Context) error, error) {
	resolver := asset.NewResolver(ctx, asset.Options{
		Path:     c.AssetInventory,
		Location: p.Location(),
		Hours:    &asset.Hours{Start: p.System.BusinessHours.Start, End: p.System.BusinessHours.End},
	}, L)
	if resolver.Size() == 0 {
		L.Warn(ctx, "asset inventory empty, every actor resolves to the default context", "path", c.AssetInventory)
	}

	if c.AssetReload == "" {
		return resolver, func(context.Context) error { return nil }, nil
	}
	reloader, err := asset.NewReloader(c.AssetReload, resolver, L)
	if err != nil {
		return nil, nil, err
	}
	reloader.Start()
	L.Info(ctx, "asset reload scheduled", "schedule", c.AssetReload)
	return resolver, reloader.Stop, nil
}
