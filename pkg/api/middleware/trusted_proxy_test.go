package middleware

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
)

func TestParseTrustedProxies(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
		wantErr  bool
	}{
		{
			name:     "empty",
			input:    nil,
			expected: nil,
		},
		{
			name:     "single CIDR",
			input:    []string{"10.0.0.0/8"},
			expected: []string{"10.0.0.0/8"},
		},
		{
			name:     "single IPv4 address",
			input:    []string{"10.0.0.1"},
			expected: []string{"10.0.0.1/32"},
		},
		{
			name:     "single IPv6 address",
			input:    []string{"::1"},
			expected: []string{"::1/128"},
		},
		{
			name:     "whitespace and blanks",
			input:    []string{"  172.16.0.0/12 ", "", "192.168.0.0/16"},
			expected: []string{"172.16.0.0/12", "192.168.0.0/16"},
		},
		{
			name:    "invalid address",
			input:   []string{"10.0.0.0/8", "not-an-ip"},
			wantErr: true,
		},
		{
			name:    "invalid CIDR",
			input:   []string{"10.0.0.0/33"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseTrustedProxies(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseTrustedProxies(%q) should fail", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTrustedProxies(%q) failed: %v", tt.input, err)
			}
			if len(result) != len(tt.expected) {
				t.Fatalf("ParseTrustedProxies(%q) returned %d networks, expected %d",
					tt.input, len(result), len(tt.expected))
			}
			for i, network := range result {
				if network.String() != tt.expected[i] {
					t.Errorf("Network %d: expected %s, got %s", i, tt.expected[i], network)
				}
			}
		})
	}
}

func TestResolveClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "::1"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		forwarded  string
		trusted    []*net.IPNet
		expected   string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.7:4321",
			trusted:    trusted,
			expected:   "203.0.113.7",
		},
		{
			name:       "untrusted peer cannot spoof headers",
			remoteAddr: "203.0.113.7:4321",
			realIP:     "1.2.3.4",
			forwarded:  "5.6.7.8",
			trusted:    trusted,
			expected:   "203.0.113.7",
		},
		{
			name:       "trusted proxy with X-Real-IP",
			remoteAddr: "10.1.2.3:80",
			realIP:     "198.51.100.4",
			forwarded:  "5.6.7.8",
			trusted:    trusted,
			expected:   "198.51.100.4",
		},
		{
			name:       "trusted proxy with X-Forwarded-For chain",
			remoteAddr: "10.1.2.3:80",
			forwarded:  "198.51.100.9, 10.1.2.3",
			trusted:    trusted,
			expected:   "198.51.100.9",
		},
		{
			name:       "trusted IPv6 proxy",
			remoteAddr: "[::1]:8080",
			forwarded:  "2001:db8::5",
			trusted:    trusted,
			expected:   "2001:db8::5",
		},
		{
			name:       "invalid headers fall back to peer",
			remoteAddr: "10.1.2.3:80",
			realIP:     "garbage",
			forwarded:  "also-garbage",
			trusted:    trusted,
			expected:   "10.1.2.3",
		},
		{
			name:       "no trusted proxies",
			remoteAddr: "10.1.2.3:80",
			realIP:     "198.51.100.4",
			expected:   "10.1.2.3",
		},
		{
			name:       "remote address without port",
			remoteAddr: "10.1.2.3",
			forwarded:  "198.51.100.9",
			trusted:    trusted,
			expected:   "198.51.100.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			if got := ResolveClientIP(req, tt.trusted); got != tt.expected {
				t.Errorf("Expected client IP %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestClientIP_StoresAddressInContext(t *testing.T) {
	trusted, _ := ParseTrustedProxies([]string{"10.0.0.0/8"})

	var got string
	handler := ClientIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClientIP(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "203.0.113.7" {
		t.Errorf("Expected client IP 203.0.113.7, got %q", got)
	}
}

func TestGetClientIP_NoContext(t *testing.T) {
	if ip := GetClientIP(httptest.NewRequest("GET", "/", nil)); ip != "" {
		t.Errorf("Expected empty client IP, got %q", ip)
	}
}

func TestLogging_IncludesClientIP(t *testing.T) {
	var buf bytes.Buffer
	trusted, _ := ParseTrustedProxies([]string{"10.0.0.0/8"})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := ClientIP(trusted)(Logging(logging.NewJSONLogger(&buf, logging.DebugLevel), nil)(inner))

	req := httptest.NewRequest("GET", "/health", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	req.Header.Set("X-Real-IP", "203.0.113.7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), `"client_ip":"203.0.113.7"`) {
		t.Errorf("Expected client_ip in log line, got %s", buf.String())
	}
}
