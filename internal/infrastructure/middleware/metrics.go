package middleware

import (
	"net/http"
	"time"

	"github.com/damon-houk/paylog/internal/infrastructure/metrics"
	"github.com/gorilla/mux"
)

// MetricsMiddleware records every routed request. It must be installed with
// Router.Use so the matched route template is known.
func MetricsMiddleware(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := newResponseWrapper(w)

			next.ServeHTTP(wrapper, r)

			m.Observe(r.Method, routeTemplate(r), wrapper.statusCode, time.Since(start))
		})
	}
}

// routeTemplate labels by template so share tokens and ids never become label values
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
