// Package httpc builds the HTTP client used to reach the conversion service.
package httpc

import (
	"net"
	"net/http"
	"time"
)

// Transport-level timeouts. These bound connection setup only; the overall
// request deadline is the caller's choice.
const (
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	DefaultTLSTimeout      = 10 * time.Second
)

// NewClient creates an HTTP client. A zero timeout means the request may run
// until the server answers.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   DefaultTLSTimeout,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
