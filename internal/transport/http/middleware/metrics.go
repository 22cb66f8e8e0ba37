package middleware

import (
	"net/http"
	"time"

	"github.com/Migiro-Johans/HRS/internal/platform/metrics"
)

// Metrics records status and latency for every request into the collector.
func Metrics(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			collector.Record(recorder.status, time.Since(start))
		})
	}
}
