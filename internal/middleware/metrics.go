package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/brainbox-app/brainbox/internal/metrics"
)

// Metrics records request counts and latency. route names the handler, since
// raw paths carry owner keys and ids.
func Metrics(m *metrics.HTTP, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := recorderFor(w)

			next.ServeHTTP(rec, r)

			m.Requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.code())).Inc()
			m.Duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
