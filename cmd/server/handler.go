package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/soarbridge/internal/authmw"
	"github.com/linnemanlabs/soarbridge/internal/ingestapi"
)

// maxBody bounds incident payloads on the public listener.
const maxBody = 1 << 20

const (
	healthPath = "/-/healthy"
	readyPath  = "/-/ready"
)

// handlerDeps is what the public listener needs.
type handlerDeps struct {
	logger      log.Logger
	svc         ingestapi.TriageService
	apiToken    string
	clientIP    httpmw.ClientIPOptions
	healthz     http.HandlerFunc
	readyz      http.HandlerFunc
	withMetrics func(http.Handler) http.Handler
}

// newHandler builds the router and wraps it in the middleware chain. The
// chain is listed innermost first; the last wrapper sees the request first.
func newHandler(d handlerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Compress(5, "application/json"))
	// sets http.route on the logger and span once chi has matched
	r.Use(httpmw.AnnotateHTTPRoute)
	r.Use(httpmw.AccessLog())
	r.Use(httpmw.MaxBody(maxBody))

	r.Get(healthPath, d.healthz)
	r.Get(readyPath, d.readyz)

	ingestapi.New(d.logger, d.svc).RegisterRoutes(r, authmw.BearerToken(d.apiToken))

	var h http.Handler = r
	h = httpmw.WithLogger(d.logger)(h)
	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)
	h = otelhttp.NewHandler(h, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != healthPath && r.URL.Path != readyPath
		}),
		// renamed to the route pattern by AnnotateHTTPRoute
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(_ *http.Request) bool { return true }),
	)
	if d.withMetrics != nil {
		h = d.withMetrics(h)
	}
	h = httpmw.ClientIPWithOptions(d.clientIP)(h)
	h = httpmw.RequestID("X-Request-Id")(h)
	h = httpmw.Recover(d.logger, nil)(h)
	h = httpmw.SecurityHeaders(h)
	return h
}
