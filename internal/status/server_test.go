package status

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pgrollback/internal/metrics"
)

func TestHandlerHealthz(t *testing.T) {
	h := Handler(nil, func() Page { return Page{} })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandlerStatusPage(t *testing.T) {
	h := Handler(nil, func() Page {
		return Page{BackendAddr: "localhost:5433", BackendUp: true, ClientCount: 2}
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "localhost:5433") || !strings.Contains(body, "connected") {
		t.Fatalf("status page missing expected content: %s", body)
	}
}

func TestHandlerFavicon(t *testing.T) {
	h := Handler(nil, func() Page { return Page{} })

	req := httptest.NewRequest(http.MethodGet, "/favicon.ico", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
		t.Fatalf("expected a non-empty favicon response, got code=%d len=%d", rec.Code, rec.Body.Len())
	}
}

func TestHandlerMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	h := Handler(m, func() Page { return Page{} })

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}

func TestHandlerMetricsEndpointAbsentWithoutCollector(t *testing.T) {
	h := Handler(nil, func() Page { return Page{} })

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Fatal("expected /metrics to 404 when no collector is wired")
	}
}
