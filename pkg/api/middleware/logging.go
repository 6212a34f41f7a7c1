package middleware

import (
	"net/http"
	"time"

	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
)

// Logging writes one line per request. Successful requests go to debug,
// 5xx responses to warn. getRequestID may be nil.
func Logging(logger logging.Logger, getRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := recordStatus(w)
			next.ServeHTTP(sr, r)

			fields := make([]logging.Field, 0, 6)
			fields = append(fields,
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", sr.status),
				logging.Latency(time.Since(start)),
			)
			if ip := GetClientIP(r); ip != "" {
				fields = append(fields, logging.String("client_ip", ip))
			}
			if getRequestID != nil {
				if id := getRequestID(r); id != "" {
					fields = append(fields, logging.String("request_id", id))
				}
			}

			log := logger.Debug
			if sr.status >= http.StatusInternalServerError {
				log = logger.Warn
			}
			log("request", fields...)
		})
	}
}
