// Package httpclient builds the HTTP clients the synthesis providers use.
// Provider responses stream audio for the length of an utterance, so the
// defaults favor connection reuse and leave the overall timeout to callers.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Options controls client construction.
type Options struct {
	// Timeout bounds the whole request including the streamed body. Zero
	// means no overall bound; callers rely on context cancellation instead.
	Timeout time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration

	// Transport, when set, replaces the built transport entirely.
	Transport http.RoundTripper
}

// Option mutates Options.
type Option func(*Options)

// WithTimeout sets the overall request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithTransport provides a custom transport overriding defaults.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *Options) { o.Transport = rt }
}

// DefaultOptions returns the defaults used for provider API calls. The idle
// pool is sized for one warm connection per concurrent call.
func DefaultOptions() Options {
	return Options{
		Timeout:             60 * time.Second,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// New constructs an *http.Client for streaming provider calls.
func New(opts ...Option) *http.Client {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	transport := options.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        options.MaxIdleConns,
			MaxIdleConnsPerHost: options.MaxIdleConnsPerHost,
			IdleConnTimeout:     options.IdleConnTimeout,
			TLSHandshakeTimeout: options.TLSHandshakeTimeout,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}

	return &http.Client{
		Timeout:   options.Timeout,
		Transport: transport,
	}
}
