package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// MetricsRecorder receives one observation per served request
type MetricsRecorder interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
}

// Metrics reports every request to recorder. route maps a request to its
// path label so node and link keys stay out of the label set; nil uses the
// raw path. A nil recorder turns the middleware into a pass-through.
func Metrics(recorder MetricsRecorder, route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if recorder == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := recordStatus(w)
			next.ServeHTTP(sr, r)

			label := r.URL.Path
			if route != nil {
				label = route(r)
			}
			recorder.RecordHTTPRequest(r.Method, label, strconv.Itoa(sr.status), time.Since(start))
		})
	}
}
