// Package proxy builds the HTTP client used for outbound API calls.
package proxy

import (
	"context"
	"fmt"
	log "log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

const DefaultTimeout = 120 * time.Second

// NewClient returns a client dialing through the SOCKS5 proxy at addr, or a
// direct client when addr is empty.
func NewClient(addr string, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if addr == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 %s: %w", addr, err)
	}

	dial := func(ctx context.Context, network, target string) (net.Conn, error) {
		return dialer.Dial(network, target)
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		dial = cd.DialContext
	}

	log.Debug("Using socks proxy", "addr", addr)
	return &http.Client{
		Transport: &http.Transport{DialContext: dial},
		Timeout:   timeout,
	}, nil
}
