package support

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

const (
	ProtocolHTTP   = "http"
	ProtocolSOCKS5 = "socks5"
)

// CreateTransport builds a single-use transport that routes every request through address.
func CreateTransport(address, protocol string, timeout time.Duration) (*http.Transport, error) {
	// Base configuration with keep-alives disabled
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 0,
		}).DialContext,
		DisableKeepAlives:     true,
		MaxIdleConns:          0,
		MaxIdleConnsPerHost:   0,
		IdleConnTimeout:       0,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	switch protocol {
	case ProtocolHTTP, "":
		transport.Proxy = http.ProxyURL(&url.URL{
			Scheme: "http",
			Host:   address,
		})

	case ProtocolSOCKS5:
		socksDialer, err := proxy.SOCKS5("tcp", address, nil, &net.Dialer{Timeout: timeout})
		if err != nil {
			return nil, err
		}
		contextDialer, ok := socksDialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 dialer for %s does not support contexts", address)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return contextDialer.DialContext(ctx, network, addr)
		}

	default:
		return nil, fmt.Errorf("unsupported proxy protocol %q", protocol)
	}

	return transport, nil
}
