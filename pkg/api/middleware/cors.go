package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string // exact origins, or "*" for any
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int // preflight cache duration in seconds
}

// DefaultCORSConfig allows no cross-origin callers until origins are added
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowedOrigins: []string{},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		MaxAge:         86400,
	}
}

// corsPolicy is a CORSConfig with its header values rendered once
type corsPolicy struct {
	anyOrigin   bool
	origins     []string
	methods     string
	headers     string
	credentials bool
	maxAge      string
}

func newCORSPolicy(config *CORSConfig) *corsPolicy {
	if config == nil || len(config.AllowedOrigins) == 0 {
		return nil
	}
	defaults := DefaultCORSConfig()
	methods, headers := config.AllowedMethods, config.AllowedHeaders
	if len(methods) == 0 {
		methods = defaults.AllowedMethods
	}
	if len(headers) == 0 {
		headers = defaults.AllowedHeaders
	}

	p := &corsPolicy{
		anyOrigin:   slices.Contains(config.AllowedOrigins, "*"),
		origins:     config.AllowedOrigins,
		methods:     strings.Join(methods, ", "),
		headers:     strings.Join(headers, ", "),
		credentials: config.AllowCredentials,
	}
	if config.MaxAge > 0 {
		p.maxAge = strconv.Itoa(config.MaxAge)
	}
	return p
}

func (p *corsPolicy) allows(origin string) bool {
	if p == nil || origin == "" {
		return false
	}
	return p.anyOrigin || slices.Contains(p.origins, origin)
}

func (p *corsPolicy) writeHeaders(h http.Header, origin string) {
	// a credentialed response may not use the wildcard
	if p.anyOrigin && !p.credentials {
		h.Set("Access-Control-Allow-Origin", "*")
	} else {
		h.Set("Access-Control-Allow-Origin", origin)
	}
	if p.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	h.Set("Access-Control-Allow-Methods", p.methods)
	h.Set("Access-Control-Allow-Headers", p.headers)
	if p.maxAge != "" {
		h.Set("Access-Control-Max-Age", p.maxAge)
	}
}

// CORS creates middleware that handles Cross-Origin Resource Sharing.
// Preflight requests are answered here with 204, or 403 for origins the
// config does not allow. A nil config or one without origins disables CORS.
func CORS(config *CORSConfig) func(http.Handler) http.Handler {
	policy := newCORSPolicy(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := policy.allows(origin)

			if policy != nil {
				w.Header().Add("Vary", "Origin")
			}
			if allowed {
				policy.writeHeaders(w.Header(), origin)
			}

			preflight := r.Method == http.MethodOptions && origin != "" &&
				r.Header.Get("Access-Control-Request-Method") != ""
			if preflight {
				if allowed {
					w.WriteHeader(http.StatusNoContent)
				} else {
					w.WriteHeader(http.StatusForbidden)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
