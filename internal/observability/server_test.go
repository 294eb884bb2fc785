package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"asr-session-client/internal/observability/metrics"
)

func TestRouter_Endpoints(t *testing.T) {
	// Make sure the collectors are registered before scraping.
	metrics.DefaultMetrics.RecordKeepAlive()

	ready := true
	srv := httptest.NewServer(NewRouter(func() bool { return ready }))
	defer srv.Close()

	tests := []struct {
		name     string
		path     string
		wantCode int
		contains string
	}{
		{"health", "/healthz", http.StatusOK, "ok"},
		{"ready", "/readyz", http.StatusOK, "ready"},
		{"metrics", "/metrics", http.StatusOK, "asr_session_keepalives_sent_total"},
		{"unknown", "/nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Errorf("GET %s: status %d, want %d", tt.path, resp.StatusCode, tt.wantCode)
			}
			if tt.contains == "" {
				return
			}
			body := new(strings.Builder)
			if _, err := io.Copy(body, resp.Body); err != nil {
				t.Fatalf("read body: %v", err)
			}
			if !strings.Contains(body.String(), tt.contains) {
				t.Errorf("GET %s: body does not contain %q", tt.path, tt.contains)
			}
		})
	}

	ready = false
	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when not ready, got %d", resp.StatusCode)
	}
}

func TestRouter_NilReady(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with nil ready func, got %d", rec.Code)
	}
}
