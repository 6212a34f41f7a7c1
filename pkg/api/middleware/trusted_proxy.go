package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ClientIPContextKey is the context key for the resolved client address
const ClientIPContextKey ContextKey = "client_ip"

// ParseTrustedProxies parses CIDR ranges or single addresses. Single IPv4
// addresses become /32 and IPv6 addresses /128.
func ParseTrustedProxies(entries []string) ([]*net.IPNet, error) {
	var networks []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy address %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			networks = append(networks, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy range %q: %w", entry, err)
		}
		networks = append(networks, network)
	}
	return networks, nil
}

// isTrusted reports whether remoteAddr (host:port or bare IP) lies in one of
// the networks
func isTrusted(remoteAddr string, trusted []*net.IPNet) bool {
	if len(trusted) == 0 {
		return false
	}
	ip := net.ParseIP(remoteHost(remoteAddr))
	if ip == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// ResolveClientIP returns the address of the client behind r. X-Real-IP and
// then the leftmost X-Forwarded-For entry are honoured only when the
// connection comes from a trusted proxy.
func ResolveClientIP(r *http.Request, trusted []*net.IPNet) string {
	if isTrusted(r.RemoteAddr, trusted) {
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
	}
	return remoteHost(r.RemoteAddr)
}

// GetClientIP extracts the client address stored by ClientIP
func GetClientIP(r *http.Request) string {
	ip, _ := r.Context().Value(ClientIPContextKey).(string)
	return ip
}

// ClientIP resolves the client address once per request and stores it in
// the request context
func ClientIP(trusted []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ClientIPContextKey, ResolveClientIP(r, trusted))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
