package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func metricsFixture(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()

	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	return m, reg
}

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	for i := range families {
		if families[i].GetName() == name {
			return families[i]
		}
	}
	return nil
}

func TestHTTPMetrics_RecordsSearchRequest(t *testing.T) {
	m, reg := metricsFixture(t)

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"items":[],"total":0}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/listings/search", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	for _, name := range []string{
		MetricHTTPRequestDuration,
		MetricHTTPRequestsTotal,
		MetricHTTPRequestSizeBytes,
		MetricHTTPResponseSizeBytes,
	} {
		if gatherFamily(t, reg, name) == nil {
			t.Errorf("metric family %s not recorded", name)
		}
	}

	total := gatherFamily(t, reg, MetricHTTPRequestsTotal)
	series := total.GetMetric()
	if len(series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(series))
	}
	for _, label := range series[0].GetLabel() {
		if label.GetName() == "path" && label.GetValue() != "/listings/search" {
			t.Errorf("path label = %s, want /listings/search", label.GetValue())
		}
	}
}

func TestHTTPMetrics_ComposesWithRequestID(t *testing.T) {
	m, reg := metricsFixture(t)

	called := false
	handler := RequestID(HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/operators/op-1/trust", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatal("handler was not called")
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("request ID middleware did not run")
	}
	if gatherFamily(t, reg, MetricHTTPRequestsTotal) == nil {
		t.Error("HTTP metrics were not recorded")
	}
}

func TestHTTPMetrics_PathNormalization(t *testing.T) {
	m, reg := metricsFixture(t)

	wrapped := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Distinct operator IDs must collapse into one labeled series, or the
	// cardinality grows with the operator table.
	paths := []string{
		"/operators/op-123",
		"/operators/op-456",
		"/operators/abc-def-ghi",
		"/operators/550e8400-e29b-41d4-a716-446655440000",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, rec.Code)
		}
	}

	total := gatherFamily(t, reg, MetricHTTPRequestsTotal)
	if total == nil {
		t.Fatal("requests total metric not found")
	}
	series := total.GetMetric()
	if len(series) != 1 {
		t.Fatalf("expected 1 series after normalization, got %d", len(series))
	}

	pathLabel := ""
	for _, label := range series[0].GetLabel() {
		if label.GetName() == "path" {
			pathLabel = label.GetValue()
		}
	}
	if pathLabel != "/operators/{id}" {
		t.Errorf("path label = %s, want /operators/{id}", pathLabel)
	}
	if got := series[0].GetCounter().GetValue(); got != float64(len(paths)) {
		t.Errorf("counter value = %f, want %d", got, len(paths))
	}
}
