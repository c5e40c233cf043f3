// Recoup triages unpaid accounts by payment likelihood and sends
// collection notifications on demand.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
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
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/recoup/internal/account/memstore"
	"github.com/linnemanlabs/recoup/internal/accountapi"
	rc "github.com/linnemanlabs/recoup/internal/cfg"
	"github.com/linnemanlabs/recoup/internal/dispatch"
	"github.com/linnemanlabs/recoup/internal/generator"
	"github.com/linnemanlabs/recoup/internal/notify"
	"github.com/linnemanlabs/recoup/internal/notify/email"
	"github.com/linnemanlabs/recoup/internal/notify/slack"
)

const appName = "recoup"
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

	// each package registers its own flags and options struct
	var (
		appCfg    rc.Config
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

	// cmdline first; env vars below fill only what was not set on the cmdline
	flag.Parse()
	if showVersion {
		fmt.Printf(
			"%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return nil
	}

	cfg.FillFromEnv(flag.CommandLine, "RECOUP_", func(format string, args ...any) {
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

	// cross-cutting checks that only main can validate
	if appCfg.APIPort == opsCfg.Port {
		return fmt.Errorf("http and admin ports must differ (both %d)", appCfg.APIPort)
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
		"enable_pprof", opsCfg.EnablePprof,
		"enable_pyroscope", profCfg.EnablePyroscope,
		"enable_tracing", traceCfg.EnableTracing,
		"otlp_endpoint", traceCfg.OTLPEndpoint,
		"seed_accounts", appCfg.SeedAccounts,
		"trusted_proxy_hops", httpmwCfg.TrustedProxyHops,
	)

	// profiling starts early so the whole lifetime is covered
	profOpts := profCfg.ToOptions()
	profOpts.AppName = v.AppName
	profOpts.Tags = map[string]string{
		"app":       v.AppName,
		"component": v.Component,
		"version":   vi.Version,
		"commit":    vi.Commit,
		"build_id":  vi.BuildId,
	}
	stopProf, profErr := prof.Start(ctx, profOpts)
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", profCfg.PyroServer)
	}
	if stopProf != nil {
		defer stopProf()
	}

	traceOpts := traceCfg.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version

	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	if shutdownOtelx == nil {
		shutdownOtelx = func(context.Context) error { return nil }
	}

	var m = metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, component, &vi)
	m.SetProfilingActive(profErr == nil && profCfg.EnablePyroscope)

	// Accounts live in memory for the lifetime of the process.
	store := memstore.New()

	if appCfg.SeedAccounts > 0 {
		gen := generator.New(generator.Config{Contact: appCfg.SeedContact, Seed: appCfg.Seed})
		recs, err := gen.Seed(ctx, store, appCfg.SeedAccounts)
		if err != nil {
			return fmt.Errorf("seed accounts: %w", err)
		}
		L.Info(ctx, "seeded mock accounts", "count", len(recs))
	}

	sender := newSender(ctx, &appCfg, L)

	dispatchMetrics := dispatch.NewMetrics(m.Registry())
	dispatcher := dispatch.New(store, sender, L, dispatchMetrics.Hooks())
	dispatch.RegisterStateGauges(m.Registry(), dispatcher.InFlight, store.CountByStatus)

	// readiness fails once the shutdown gate closes so the load balancer drains us
	var shutdownGate health.ShutdownGate
	readiness := health.All(
		shutdownGate.Probe(),
	)
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

	r := chi.NewRouter()
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(httpmw.AnnotateHTTPRoute)
	r.Use(httpmw.AccessLog())
	r.Use(httpmw.MaxBody(1024 * 64))

	r.Get("/-/healthy", health.HealthzHandler(liveness))
	r.Get("/-/ready", health.ReadyzHandler(readiness))

	accountapi.New(L, store, dispatcher).RegisterRoutes(r)

	h := wrapHandler(r, L, m.Middleware, httpmwCfg.TrustedProxyHops)

	apiOpts, err := httpCfg.ToOptions()
	if err != nil {
		L.Error(ctx, err, "invalid http config")
		return err
	}

	apiHTTPStop, err := httpserver.Start(ctx, fmt.Sprintf(":%d", appCfg.APIPort), h, L, apiOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start api http listener")
		return err
	}

	if err := notifySystemd(); err != nil {
		// worst case systemd kills us after its start timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()

	L.Info(context.Background(), "shutdown signal received")

	shutdownGate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed")

	drain(L, time.Duration(appCfg.DrainSeconds)*time.Second)

	// API first so no new triggers arrive, then in-flight notifications.
	stopFns := []stopFn{
		{"api http server", apiHTTPStop},
		{"notification dispatcher", dispatcher.Wait},
		{"ops http server", opsHTTPStop},
		{"otel", shutdownOtelx},
	}
	shutdown(L, time.Duration(appCfg.ShutdownBudgetSeconds)*time.Second, stopFns)

	L.Info(context.Background(), "shutdown complete")
	return nil
}

// newSender assembles the configured notification channels. With none
// configured, messages go to the log.
func newSender(ctx context.Context, c *rc.Config, L log.Logger) dispatch.Sender {
	var senders []notify.Named
	if c.SlackWebhookURL != "" {
		senders = append(senders, notify.Named{Name: "slack", Sender: slack.New(c.SlackWebhookURL, L)})
		L.Info(ctx, "notifier enabled", "type", "slack")
	}
	if c.SMTPHost != "" {
		senders = append(senders, notify.Named{Name: "email", Sender: email.New(c.Email(), L)})
		L.Info(ctx, "notifier enabled", "type", "email", "smtp_host", c.SMTPHost, "smtp_port", c.SMTPPort)
	}
	if len(senders) == 0 {
		L.Warn(ctx, "no notification channel configured, logging messages only")
		return notify.NewLogSender(L)
	}
	return notify.NewMulti(senders...)
}

// wrapHandler applies the outer middleware stack. Outermost wrappers see the
// raw request first and the response last.
func wrapHandler(r http.Handler, L log.Logger, metricsMW func(http.Handler) http.Handler, trustedHops int) http.Handler {
	// request-scoped logging, inner so it sees trace_id and the chi route
	h := httpmw.WithLogger(L)(r)

	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)

	h = otelhttp.NewHandler(h, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/-/healthy" && r.URL.Path != "/-/ready"
		}),
		// AnnotateHTTPRoute renames the span to the route pattern later
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(_ *http.Request) bool { return true }),
	)

	h = metricsMW(h)

	h = httpmw.ClientIPWithOptions(httpmw.ClientIPOptions{
		TrustedHops: trustedHops,
	})(h)

	h = httpmw.RequestID("X-Request-Id")(h)

	// outer to catch panics from any downstream middleware or handlers
	h = httpmw.Recover(L, nil)(h)

	return httpmw.SecurityHeaders(h)
}

// drain waits for the load balancer to notice the closed gate. A second
// signal skips the wait.
func drain(L log.Logger, d time.Duration) {
	L.Info(context.Background(), "sleeping for drain period", "drain_seconds", int(d.Seconds()))
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(forceCh)

	select {
	case <-time.After(d):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
}

type stopFn struct {
	name string
	fn   func(context.Context) error
}

// shutdown stops components in order, each with an equal slice of budget.
func shutdown(L log.Logger, budget time.Duration, fns []stopFn) {
	if len(fns) == 0 {
		return
	}
	perComponent := budget / time.Duration(len(fns))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	for _, s := range fns {
		cctx, ccancel := context.WithTimeout(shutdownCtx, perComponent)
		if err := s.fn(cctx); err != nil {
			L.Error(context.Background(), err, s.name+" shutdown")
		}
		ccancel()
	}
}

func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET when started with Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr) //nolint:gosec,noctx // G704: addr is from NOTIFY_SOCKET set by systemd not user input, no context support in net package for unixgram sockets
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	return nil
}
