// Package transport builds the HTTP clients used to reach the backend.
package transport

import (
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// Options configure an outbound HTTP client
type Options struct {
	Timeout       time.Duration // 0 leaves deadlines to the request context
	Limiter       *Limiter      // shared between clients; built from RatePerSecond and Burst if nil
	RatePerSecond float64
	Burst         int
	HTTPProxy     string
	HTTPSProxy    string
	NoProxy       string
}

// NewHTTPClient returns a client with proxy support and per-host rate limiting
func NewHTTPClient(opts Options) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = NewProxyFunc(opts.HTTPProxy, opts.HTTPSProxy, opts.NoProxy)

	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewLimiter(opts.RatePerSecond, opts.Burst)
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: limiter.RoundTripper(base),
	}
}

// NewProxyFunc creates a proxy function based on configuration.
// If no proxy URLs are provided, falls back to environment variables.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	cfg := &httpproxy.Config{
		HTTPProxy:  httpProxy,
		HTTPSProxy: httpsProxy,
		NoProxy:    noProxy,
	}
	proxyFor := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return proxyFor(req.URL)
	}
}
