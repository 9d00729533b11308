// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// unmeasuredPaths are probe and scrape endpoints that would only add noise
// to the request metrics.
var unmeasuredPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// normalizePath collapses ID-bearing paths into route patterns so metric
// cardinality stays bounded by the number of routes, not the number of
// operators and listings. /operators/abc123/trust becomes
// /operators/{id}/trust.
func normalizePath(path string) string {
	staticRoutes := map[string]bool{
		"/":                       true,
		"/listings/search":        true,
		"/events":                 true,
		"/admin/score-correction": true,
		"/admin/score-backfill":   true,
		"/health":                 true,
		"/ready":                  true,
		"/metrics":                true,
	}
	if staticRoutes[path] {
		return path
	}

	if strings.HasPrefix(path, "/operators/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] == "trust" {
			return "/operators/{id}/trust"
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/operators/{id}"
		}
	}

	if strings.HasPrefix(path, "/scores/") {
		parts := strings.Split(path, "/")
		if len(parts) == 5 && parts[4] == "history" {
			return "/scores/{type}/{id}/history"
		}
	}

	if strings.HasPrefix(path, "/listings/") {
		parts := strings.Split(path, "/")
		if len(parts) == 3 && parts[2] != "" {
			return "/listings/{id}"
		}
	}

	// Unknown patterns pass through unchanged so new routes still show up.
	return path
}

// metricsResponseWriter captures the status code and bytes written for the
// request metrics.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader records the first status code; later calls are dropped the
// same way net/http drops them.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// UpdateContext forwards context updates to the wrapped writer so handlers
// can reach the logging middleware through the metrics wrapper.
func (mrw *metricsResponseWriter) UpdateContext(ctx context.Context) {
	UpdateResponseContext(mrw.ResponseWriter, ctx)
}

// HTTPMetrics records duration, request/response sizes, and a request
// counter per method, route pattern, and status. Probe and scrape endpoints
// are not measured.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unmeasuredPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
