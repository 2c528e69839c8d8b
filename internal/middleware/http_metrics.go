package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are reported as-is; everything else is normalized.
var staticRoutes = map[string]bool{
	"/search":                true,
	"/search/session":        true,
	"/search/session/reload": true,
	"/route":                 true,
	"/places":                true,
	"/ranks":                 true,
	"/health":                true,
	"/ready":                 true,
	"/metrics":               true,
}

// normalizePath maps request paths onto route patterns so that ids do not
// become metric labels. Unknown paths collapse to "other".
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 2 || parts[1] == "" {
		return "other"
	}

	switch parts[0] {
	case "reviews":
		switch {
		case len(parts) == 2:
			return "/reviews/{id}"
		case len(parts) == 3 && (parts[2] == "vote" || parts[2] == "comments"):
			return "/reviews/{id}/" + parts[2]
		}
	case "places":
		if len(parts) == 3 && parts[2] == "reviews" {
			return "/places/{id}/reviews"
		}
	}
	return "other"
}

// HTTPMetrics records request count, duration and sizes per normalized route.
// Health probes are not recorded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}
			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(rw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				rw.size,
			)
		})
	}
}
