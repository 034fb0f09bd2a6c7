// Package tls builds client TLS configurations for calls to remote model
// servers protected by mutual TLS.
//
// Configurations enforce TLS 1.3 and present a client certificate. The CA
// file is optional; without it the system roots verify the server.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Config holds TLS certificate file paths for the model client.
type Config struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// Validate checks TLS configuration for security issues.
// Returns error if TLS is enabled but certificate files are missing or inaccessible.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.CertFile == "" || c.KeyFile == "" {
		return errors.New("tls enabled but cert/key files not specified")
	}

	for _, path := range []string{c.CertFile, c.KeyFile, c.CAFile} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("tls file %q: %w", path, err)
		}
	}

	return nil
}

// ClientConfig returns nil when TLS is disabled, so callers can pass the
// result straight to an http.Transport.
func (c Config) ClientConfig() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return NewClientTLSConfig(c.CertFile, c.KeyFile, c.CAFile)
}

// NewClientTLSConfig creates a TLS configuration presenting the client
// certificate and, when caFile is set, verifying the server against it.
//
// Parameters:
//   - certFile: Client certificate file path (PEM format)
//   - keyFile: Client private key file path (PEM format)
//   - caFile: CA certificate file path for verifying the server (PEM format, optional)
func NewClientTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	if certFile == "" {
		return nil, errors.New("certificate file path cannot be empty")
	}
	if keyFile == "" {
		return nil, errors.New("key file path cannot be empty")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}

	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}
