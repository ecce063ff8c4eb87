package contain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestContain_PostsIP(t *testing.T) {
	t.Parallel()

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	if err := New(srv.URL+"/block", 0).Contain(context.Background(), "10.0.0.5"); err != nil {
		t.Fatalf("Contain: %v", err)
	}
	if got["ip"] != "10.0.0.5" {
		t.Errorf("payload = %v", got)
	}
}

func TestContain_Errors(t *testing.T) {
	t.Parallel()

	t.Run("non-2xx", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		if err := New(srv.URL, 0).Contain(context.Background(), "10.0.0.5"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		if err := New(url, 0).Contain(context.Background(), "10.0.0.5"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)
		if err := New(srv.URL, 20*time.Millisecond).Contain(context.Background(), "10.0.0.5"); err == nil {
			t.Fatal("expected timeout")
		}
	})
}

func TestNew_DefaultTimeout(t *testing.T) {
	t.Parallel()

	if a := New("http://x", 0); a.client.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", a.client.Timeout, DefaultTimeout)
	}
}
