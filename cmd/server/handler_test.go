package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

type stubService struct{}

func (stubService) Process(_ context.Context, _ *triage.Incident) *triage.Outcome {
	return &triage.Outcome{Status: triage.StatusComplete, CaseID: "SEC-1"}
}

func (stubService) Actor(_ context.Context, _ string) (*triage.Record, bool, error) {
	return nil, false, nil
}

func okFunc(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func testHandler(token string) http.Handler {
	return newHandler(handlerDeps{
		logger:   log.Nop(),
		svc:      stubService{},
		apiToken: token,
		healthz:  okFunc,
		readyz:   okFunc,
	})
}

func TestHandler_Routes(t *testing.T) {
	t.Parallel()

	h := testHandler("tok")
	body := `{"hostname":"web-01","ip_address":"10.0.0.5","command":"id"}`

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"healthy needs no auth", http.MethodGet, healthPath, "", http.StatusOK},
		{"ready needs no auth", http.MethodGet, readyPath, "", http.StatusOK},
		{"ingest without token", http.MethodPost, "/api/v1/incidents", "", http.StatusUnauthorized},
		{"ingest with token", http.MethodPost, "/api/v1/incidents", "Bearer tok", http.StatusOK},
		{"alias with token", http.MethodPost, "/alert", "Bearer tok", http.StatusOK},
		{"unknown path", http.MethodGet, "/nope", "Bearer tok", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestShutdown_RunsAllInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mk := func(name string, err error) stopper {
		return stopper{name, func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Errorf("%s: no deadline", name)
			}
			order = append(order, name)
			return err
		}}
	}

	shutdown(log.Nop(), time.Second, []stopper{
		mk("ingest", nil),
		mk("reloader", errors.New("stuck")),
		mk("ops", nil),
	})

	if strings.Join(order, ",") != "ingest,reloader,ops" {
		t.Errorf("order = %v", order)
	}
}

func TestShutdown_SliceBudget(t *testing.T) {
	t.Parallel()

	start := time.Now()
	shutdown(log.Nop(), 100*time.Millisecond, []stopper{
		{"slow", func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }},
		{"fast", func(context.Context) error { return nil }},
	})
	if el := time.Since(start); el > time.Second {
		t.Errorf("shutdown took %v, want bounded by budget", el)
	}

	shutdown(log.Nop(), time.Second, nil)
}
