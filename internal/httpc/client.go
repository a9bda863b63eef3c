// Package httpc builds the outbound HTTP clients used by the provider
// adapters and the talk client.
package httpc

import (
	"net"
	"net/http"
	"time"
)

// transport is shared so the three provider adapters, which often hit the
// same API host, reuse one connection pool.
var transport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          64,
	MaxIdleConnsPerHost:   16,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: time.Second,
}

// NewClient returns a client on the shared transport. timeout caps the
// whole exchange including reading the body; zero leaves it to the
// request context.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: transport}
}
