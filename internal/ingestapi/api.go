// Package ingestapi is the HTTP surface of the bridge: incident ingestion and
// actor lookups.
package ingestapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

// TriageService defines the business operations ingestapi needs.
type TriageService interface {
	Process(ctx context.Context, inc *triage.Incident) *triage.Outcome
	Actor(ctx context.Context, ip string) (*triage.Record, bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router. mw wraps every route,
// typically with bearer auth.
func (a *API) RegisterRoutes(r chi.Router, mw ...func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(mw...)
		r.Post("/alert", a.handleIngest)
		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/incidents", a.handleIngest)
			r.Get("/actors/{ip}", a.handleGetActor)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
