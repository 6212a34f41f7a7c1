package tls

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestServerConfig_Disabled(t *testing.T) {
	cfg, err := ServerConfig(Config{Hosts: []string{"localhost"}})
	if err != nil {
		t.Fatalf("ServerConfig() error = %v", err)
	}
	if cfg != nil {
		t.Error("disabled config should produce no tls.Config")
	}
}

func TestServerConfig_SelfSigned(t *testing.T) {
	cfg, err := ServerConfig(Config{SelfSigned: true, Hosts: []string{"viewer.local", "10.0.0.7"}, ValidFor: time.Hour})
	if err != nil {
		t.Fatalf("ServerConfig() error = %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", cfg.MinVersion)
	}

	leaf, err := x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
	if err != nil {
		t.Fatalf("parse leaf: %v", err)
	}
	if len(leaf.DNSNames) != 1 || leaf.DNSNames[0] != "viewer.local" {
		t.Errorf("DNSNames = %v, want [viewer.local]", leaf.DNSNames)
	}
	if len(leaf.IPAddresses) != 1 || !leaf.IPAddresses[0].Equal(net.ParseIP("10.0.0.7")) {
		t.Errorf("IPAddresses = %v, want [10.0.0.7]", leaf.IPAddresses)
	}
	if err := leaf.VerifyHostname("viewer.local"); err != nil {
		t.Errorf("VerifyHostname() error = %v", err)
	}

	notAfter, err := NotAfter(cfg)
	if err != nil {
		t.Fatalf("NotAfter() error = %v", err)
	}
	if d := time.Until(notAfter); d <= 0 || d > time.Hour {
		t.Errorf("certificate expires in %v, want within the hour", d)
	}
}

func TestServerConfig_FromFiles(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "certs", "server.crt")
	keyFile := filepath.Join(dir, "certs", "server.key")

	if err := WriteSelfSigned(certFile, keyFile, nil, 0); err != nil {
		t.Fatalf("WriteSelfSigned() error = %v", err)
	}
	info, err := os.Stat(keyFile)
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key permissions = %o, want 600", perm)
	}

	// files win over SelfSigned
	cfg, err := ServerConfig(Config{CertFile: certFile, KeyFile: keyFile, SelfSigned: true})
	if err != nil {
		t.Fatalf("ServerConfig() error = %v", err)
	}
	notAfter, err := NotAfter(cfg)
	if err != nil {
		t.Fatalf("NotAfter() error = %v", err)
	}
	if d := time.Until(notAfter); d < DefaultValidity-time.Hour {
		t.Errorf("default validity not applied, expires in %v", d)
	}
}

func TestServerConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus.pem")
	if err := os.WriteFile(bogus, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"cert without key", Config{CertFile: bogus}},
		{"key without cert", Config{KeyFile: bogus}},
		{"missing files", Config{CertFile: filepath.Join(dir, "a"), KeyFile: filepath.Join(dir, "b")}},
		{"garbage files", Config{CertFile: bogus, KeyFile: bogus}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ServerConfig(tt.cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestNotAfter_NoCertificate(t *testing.T) {
	if _, err := NotAfter(nil); err == nil {
		t.Error("NotAfter(nil) should fail")
	}
	if _, err := NotAfter(&tls.Config{}); err == nil {
		t.Error("NotAfter on an empty config should fail")
	}
}

func TestHandshake(t *testing.T) {
	cfg, err := ServerConfig(Config{SelfSigned: true})
	if err != nil {
		t.Fatalf("ServerConfig() error = %v", err)
	}

	ln, err := tls.Listen("tcp", "127.0.0.1:0", cfg)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.(*tls.Conn).Handshake()
	}()

	pool := x509.NewCertPool()
	leaf, _ := x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
	pool.AddCert(leaf)

	conn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{RootCAs: pool, ServerName: "127.0.0.1"})
	if err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
	conn.Close()
}
