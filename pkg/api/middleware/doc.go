// Package middleware holds the http.Handler wrappers the scene API stacks in
// front of its routes: panic recovery, request IDs, client address
// resolution behind trusted proxies, security headers, request logging,
// CORS, metrics and a request body cap.
//
// Each constructor returns a func(http.Handler) http.Handler. The server
// applies them outermost first:
//
//	h := middleware.BodySizeLimit(maxBytes)(mux)
//	h = middleware.Metrics(reg, routeLabel)(h)
//	h = middleware.CORS(cors)(h)
//	h = middleware.Logging(logger, middleware.GetRequestID)(h)
//	h = middleware.SecurityHeaders(&middleware.SecurityHeadersConfig{TLSEnabled: tls})(h)
//	h = middleware.ClientIP(trustedProxies)(h)
//	h = middleware.RequestID()(h)
//	h = middleware.PanicRecovery(logger)(h)
package middleware
