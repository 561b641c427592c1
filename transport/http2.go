// Package transport builds the HTTP client used to submit feedback.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/xerrors"
)

// DefaultTimeout bounds a single submission.
const DefaultTimeout = 10 * time.Second

// Options configures the HTTP client. All fields are optional.
type Options struct {
	// CAPath is a PEM bundle used as the only trusted roots. When empty the
	// system roots are used.
	CAPath string
	// CertPath and KeyPath enable mTLS when both are set.
	CertPath string
	KeyPath  string
	// Timeout bounds each request (DefaultTimeout when zero).
	Timeout time.Duration
}

// BuildHTTP2Client creates a client that negotiates HTTP/2 over TLS and falls
// back to HTTP/1.1 for plain http:// endpoints.
func BuildHTTP2Client(opts Options) (*http.Client, error) {
	if (opts.CertPath == "") != (opts.KeyPath == "") {
		return nil, xerrors.New("certPath and keyPath must be set together")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if opts.CAPath != "" {
		caCert, err := os.ReadFile(opts.CAPath)
		if err != nil {
			return nil, xerrors.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, xerrors.Errorf("parse CA certificate %q: no PEM certificates found", opts.CAPath)
		}
		tlsConfig.RootCAs = pool
	}

	if opts.CertPath != "" {
		clientCert, err := tls.LoadX509KeyPair(opts.CertPath, opts.KeyPath)
		if err != nil {
			return nil, xerrors.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{clientCert}
	}

	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     tlsConfig,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	// Upgrades TLS connections to h2 while keeping http:// usable.
	if err := http2.ConfigureTransport(base); err != nil {
		return nil, xerrors.Errorf("configure http2: %w", err)
	}

	return &http.Client{
		Transport: base,
		Timeout:   timeout,
	}, nil
}
