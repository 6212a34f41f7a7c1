// Package tls builds the server side TLS configuration for the scene API,
// either from PEM files or from a generated self-signed certificate.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// DefaultValidity is the lifetime of generated certificates
const DefaultValidity = 365 * 24 * time.Hour

// Config selects the serving certificate. CertFile and KeyFile take
// precedence over SelfSigned.
type Config struct {
	CertFile   string
	KeyFile    string
	SelfSigned bool
	// Hosts are the DNS names and IPs put into a generated certificate
	Hosts    []string
	ValidFor time.Duration
}

// Enabled reports whether the config asks for TLS at all
func (c Config) Enabled() bool {
	return c.CertFile != "" || c.KeyFile != "" || c.SelfSigned
}

// ServerConfig returns the tls.Config for c, or nil when TLS is disabled
func ServerConfig(c Config) (*tls.Config, error) {
	if !c.Enabled() {
		return nil, nil
	}

	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case c.CertFile != "" && c.KeyFile != "":
		cert, err = tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load certificate: %w", err)
		}
	case c.CertFile != "" || c.KeyFile != "":
		return nil, errors.New("certificate and key files must be given together")
	default:
		cert, err = SelfSigned(c.Hosts, c.ValidFor)
		if err != nil {
			return nil, err
		}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: cipherSuites,
	}, nil
}

// cipherSuites are the TLS 1.2 suites offered; TLS 1.3 suites are not
// configurable
var cipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
}

// NotAfter returns the expiry of the leaf certificate in cfg
func NotAfter(cfg *tls.Config) (time.Time, error) {
	if cfg == nil || len(cfg.Certificates) == 0 || len(cfg.Certificates[0].Certificate) == 0 {
		return time.Time{}, errors.New("no certificate configured")
	}
	leaf := cfg.Certificates[0].Leaf
	if leaf == nil {
		var err error
		if leaf, err = x509.ParseCertificate(cfg.Certificates[0].Certificate[0]); err != nil {
			return time.Time{}, fmt.Errorf("parse certificate: %w", err)
		}
	}
	return leaf.NotAfter, nil
}
