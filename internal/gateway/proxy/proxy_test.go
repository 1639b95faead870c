package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v3"

	"space-planner/internal/common/logging"
)

func TestForwardKeepsPathQueryAndBody(t *testing.T) {
	var gotPath, gotQuery, gotBody, gotType string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "image/svg+xml")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("<svg/>"))
	}))
	defer upstream.Close()

	u := New(upstream.URL, StripPrefix("/api/v1"), WithLogger(logging.Discard()))
	app := fiber.New()
	app.All("/api/v1/documents/*", u.Handler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/flat/shapes?dry=1", strings.NewReader(`{"type":"circle"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusCreated || string(body) != "<svg/>" {
		t.Fatalf("response %d %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Fatalf("content type %q", ct)
	}
	if gotPath != "/documents/flat/shapes" || gotQuery != "dry=1" {
		t.Fatalf("upstream saw %s?%s", gotPath, gotQuery)
	}
	if gotBody != `{"type":"circle"}` || gotType != "application/json" {
		t.Fatalf("upstream body %q type %q", gotBody, gotType)
	}
}

func TestUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()

	u := New(addr, WithLogger(logging.Discard()))
	app := fiber.New()
	app.Get("/*", u.Handler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/documents", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if err := u.Ready(context.Background()); err == nil {
		t.Fatalf("Ready should fail for a closed upstream")
	}
}

func TestReady(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/ready" || !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	u := New(upstream.URL+"/", WithLogger(logging.Discard()))
	if err := u.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	ready.Store(false)
	if err := u.Ready(context.Background()); err == nil {
		t.Fatalf("Ready should report 503")
	}
}
