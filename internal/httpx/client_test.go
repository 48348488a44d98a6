package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
)

func TestPostJSONDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value": 7}`))
	}))
	defer srv.Close()

	var out struct {
		Value int `json:"value"`
	}
	client := New(2*time.Second, 0)
	if err := client.PostJSON(context.Background(), srv.URL, []byte(`{}`), &out); err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if out.Value != 7 {
		t.Fatalf("unexpected value %d", out.Value)
	}
}

func TestPostJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	client := New(2*time.Second, 2)
	if err := client.PostJSON(context.Background(), srv.URL, nil, &out); err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if !out.OK || calls.Load() != 2 {
		t.Fatalf("expected retry then success, calls=%d ok=%v", calls.Load(), out.OK)
	}
}

func TestPostJSONMapsStatuses(t *testing.T) {
	cases := []struct {
		status int
		code   clierr.Code
	}{
		{http.StatusTooManyRequests, clierr.CodeRateLimited},
		{http.StatusUnauthorized, clierr.CodeAuth},
		{http.StatusBadGateway, clierr.CodeUnavailable},
		{http.StatusNotFound, clierr.CodeUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := New(2*time.Second, 0)
		err := client.PostJSON(context.Background(), srv.URL, nil, nil)
		srv.Close()
		if !clierr.IsCode(err, tc.code) {
			t.Fatalf("status %d: expected code %d, got %v", tc.status, tc.code, err)
		}
	}
}
