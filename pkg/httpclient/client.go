// Package httpclient builds the outbound HTTP client shared by provider
// discovery and the token exchange.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single outbound request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Doer defines the interface for making HTTP requests.
// This abstraction allows for testing and custom implementations.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures New.
type Options struct {
	// Timeout is the overall per-request timeout. Zero selects DefaultTimeout.
	Timeout time.Duration

	// TLSConfig allows custom TLS configuration. It is cloned, never modified.
	TLSConfig *tls.Config

	// InsecureSkipVerify disables TLS certificate verification (not recommended).
	InsecureSkipVerify bool
}

// New creates an HTTP client tuned for short identity provider calls.
// Requests are attempted exactly once; callers own any retry policy.
func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	customTLS := opts.TLSConfig
	if customTLS == nil {
		customTLS = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	} else {
		customTLS = opts.TLSConfig.Clone()
	}

	if opts.InsecureSkipVerify {
		customTLS.InsecureSkipVerify = true
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       customTLS,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
