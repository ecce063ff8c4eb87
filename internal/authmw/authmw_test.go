package authmw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func serve(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", http.NoBody)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBearerToken_ValidToken(t *testing.T) {
	t.Parallel()

	h := BearerToken("secret-token-123")(okHandler)
	for _, v := range []string{"Bearer secret-token-123", "bearer secret-token-123", "Bearer  secret-token-123 "} {
		if rec := serve(h, v); rec.Code != http.StatusOK {
			t.Errorf("%q: status = %d, want %d", v, rec.Code, http.StatusOK)
		}
	}
}

func TestBearerToken_Rejected(t *testing.T) {
	t.Parallel()

	h := BearerToken("secret")(okHandler)

	tests := []struct {
		name  string
		value string
		msg   string
	}{
		{"missing", "", "missing or malformed"},
		{"basic auth", "Basic dXNlcjpwYXNz", "missing or malformed"},
		{"no scheme", "secret", "missing or malformed"},
		{"empty credential", "Bearer ", "missing or malformed"},
		{"wrong token", "Bearer nope", "invalid token"},
		{"token prefix", "Bearer secretX", "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := serve(h, tt.value)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type = %q", ct)
			}
			if rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
			if !strings.Contains(rec.Body.String(), tt.msg) {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.msg)
			}
		})
	}
}

func TestBearerToken_EmptyTokenDisablesCheck(t *testing.T) {
	t.Parallel()

	h := BearerToken("")(okHandler)
	if rec := serve(h, ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec := serve(h, "Bearer anything"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
