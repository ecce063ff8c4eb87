// Soarbridge is a SOAR bridge that triages host security incidents with an AI
// analyst and drives Jira, Slack and a containment agent from the verdict.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/health"
	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/httpserver"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/metrics"
	"github.com/linnemanlabs/go-core/opshttp"
	"github.com/linnemanlabs/go-core/otelx"
	"github.com/linnemanlabs/go-core/prof"
	v "github.com/linnemanlabs/go-core/version"

	sc "github.com/linnemanlabs/soarbridge/internal/cfg"
	"github.com/linnemanlabs/soarbridge/internal/triage"
)

const appName = "soarbridge"
const component = "server"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component
	vi := v.Get()

	var (
		appCfg    sc.Config
		httpCfg   httpserver.Config
		httpmwCfg httpmw.Config
		logCfg    log.Config
		opsCfg    opshttp.Config
		profCfg   prof.Config
		traceCfg  otelx.Config
	)
	appCfg.RegisterFlags(flag.CommandLine)
	httpCfg.RegisterFlags(flag.CommandLine)
	httpmwCfg.RegisterFlags(flag.CommandLine)
	logCfg.RegisterFlags(flag.CommandLine)
	opsCfg.RegisterFlags(flag.CommandLine)
	profCfg.RegisterFlags(flag.CommandLine)
	traceCfg.RegisterFlags(flag.CommandLine)
	var showVersion bool
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")

	// flags win over SOARBRIDGE_* env vars
	flag.Parse()
	if showVersion {
		fmt.Printf(
			"%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return nil
	}
	cfg.FillFromEnv(flag.CommandLine, "SOARBRIDGE_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := errors.Join(
		appCfg.Validate(),
		httpCfg.Validate(),
		httpmwCfg.Validate(),
		logCfg.Validate(),
		opsCfg.Validate(),
		profCfg.Validate(),
		traceCfg.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if appCfg.APIPort == opsCfg.Port {
		return fmt.Errorf("http and admin ports must differ (both %d)", appCfg.APIPort)
	}

	policy, err := sc.LoadPolicy(appCfg.PolicyFile)
	if err != nil {
		return err
	}
	if err := policy.Validate(appCfg.AnalystBackend == sc.AnalystHTTP); err != nil {
		return fmt.Errorf("policy validation failed: %w", err)
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"http_port", appCfg.APIPort,
		"admin_port", opsCfg.Port,
		"org", policy.System.OrgName,
		"timezone", policy.System.OperatingTimezone,
		"state_backend", appCfg.StateBackend,
		"analyst_backend", appCfg.AnalystBackend,
		"dedup_window", appCfg.DedupWindow,
		"api_auth", appCfg.APIToken != "",
		"enable_pyroscope", profCfg.EnablePyroscope,
		"enable_tracing", traceCfg.EnableTracing,
		"otlp_endpoint", traceCfg.OTLPEndpoint,
		"trusted_proxy_hops", httpmwCfg.TrustedProxyHops,
	)

	profOpts := profCfg.ToOptions()
	profOpts.AppName = v.AppName
	profOpts.Tags = map[string]string{
		"app":       v.AppName,
		"component": v.Component,
		"version":   vi.Version,
		"commit":    vi.Commit,
	}
	stopProf, profErr := prof.Start(ctx, profOpts)
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", profCfg.PyroServer)
	}

	traceOpts := traceCfg.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version
	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, component, &vi)
	m.SetProfilingActive(profErr == nil && profCfg.EnablePyroscope)

	store, closeStore, err := openStore(ctx, &appCfg, m.Registry(), L)
	if err != nil {
		return err
	}
	defer closeStore()

	resolver, stopReload, err := newAssets(ctx, &appCfg, policy, L)
	if err != nil {
		return err
	}

	svc, err := newService(ctx, &appCfg, policy, store, resolver, triage.NewMetrics(m.Registry()).Hooks(), L)
	if err != nil {
		return err
	}

	// readiness flips to failing once shutdown starts so the load balancer
	// stops routing here during the drain
	var shutdownGate health.ShutdownGate
	readiness := health.All(shutdownGate.Probe())
	liveness := health.Fixed(true, "")

	opsOpts := opsCfg.ToOptions()
	opsOpts.Metrics = m.Handler()
	opsOpts.Health = liveness
	opsOpts.Readiness = readiness
	opsOpts.UseRecoverMW = true
	opsOpts.OnPanic = m.IncHttpPanic
	opsHTTPStop, err := opshttp.Start(ctx, L, opsOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		return err
	}

	h := newHandler(handlerDeps{
		logger:      L,
		svc:         svc,
		apiToken:    appCfg.APIToken,
		clientIP:    httpmw.ClientIPOptions{TrustedHops: httpmwCfg.TrustedProxyHops},
		healthz:     health.HealthzHandler(liveness),
		readyz:      health.ReadyzHandler(readiness),
		withMetrics: func(next http.Handler) http.Handler { return m.Middleware(next) },
	})

	ingestOpts, err := httpCfg.ToOptions()
	if err != nil {
		L.Error(ctx, err, "invalid http config")
		return err
	}
	ingestHTTPStop, err := httpserver.Start(ctx, fmt.Sprintf(":%d", appCfg.APIPort), h, L, ingestOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start ingest http listener")
		return err
	}

	if err := sdNotify(os.Getenv("NOTIFY_SOCKET"), sdReady); err != nil {
		L.Warn(ctx, "systemd readiness not sent", "error", err)
	}

	<-ctx.Done()
	L.Info(context.Background(), "shutdown signal received")

	if err := sdNotify(os.Getenv("NOTIFY_SOCKET"), sdStopping); err != nil {
		L.Debug(context.Background(), "systemd stopping not sent", "error", err)
	}
	shutdownGate.Set("draining")
	drain(L, time.Duration(appCfg.DrainSeconds)*time.Second)

	stops := []stopper{
		{"ingest http server", ingestHTTPStop},
		{"asset reloader", stopReload},
		{"ops http server", opsHTTPStop},
	}
	if shutdownOtelx != nil {
		stops = append(stops, stopper{"otel", shutdownOtelx})
	}
	shutdown(L, time.Duration(appCfg.ShutdownBudgetSeconds)*time.Second, stops)

	if stopProf != nil {
		stopProf()
	}

	L.Info(context.Background(), "shutdown complete")
	return nil
}
