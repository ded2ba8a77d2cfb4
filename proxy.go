// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// ProxyDialer is the narrow dialing surface Transport needs; satisfied
// by net.Dialer, golang.org/x/net/proxy.Dialer, and httpConnectDialer.
type ProxyDialer interface {
	Dial(network, address string) (net.Conn, error)
}

// newProxyDialer builds the dialer to use for a server's configured
// proxy (spec §4.2/§6's proxy protocols): direct, SOCKS5, or HTTP
// CONNECT.
func newProxyDialer(cfg ProxyConfig, base *net.Dialer) (ProxyDialer, error) {
	addr := net.JoinHostPort(cfg.Host, itoa(cfg.Port))

	switch cfg.Kind {
	case ProxyNone:
		return base, nil
	case ProxySocks5:
		var auth *proxy.Auth
		if cfg.Username != "" {
			auth = &proxy.Auth{User: cfg.Username, Password: cfg.Password}
		}
		d, err := proxy.SOCKS5("tcp", addr, auth, base)
		if err != nil {
			return nil, &TransportError{Kind: TransportProxyNegotiation, Err: err, Retryable: true}
		}
		return d, nil
	case ProxyHTTPConnect:
		return &httpConnectDialer{proxyAddr: addr, base: base, username: cfg.Username, password: cfg.Password}, nil
	default:
		return nil, fmt.Errorf("ircengine: unknown proxy kind %v", cfg.Kind)
	}
}

func itoa(n int) string { return strconv.Itoa(n) }

// httpConnectDialer implements ProxyDialer over an HTTP CONNECT proxy.
// golang.org/x/net/proxy has no HTTP CONNECT client, so this is
// implemented directly against net/http and net, the way the teacher
// hand-rolls its own protocol framing over net.Conn.
type httpConnectDialer struct {
	proxyAddr string
	base      *net.Dialer
	username  string
	password  string
}

func (d *httpConnectDialer) Dial(network, address string) (net.Conn, error) {
	conn, err := d.base.Dial(network, d.proxyAddr)
	if err != nil {
		return nil, &TransportError{Kind: TransportProxyNegotiation, Err: err, Retryable: true}
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: make(http.Header),
	}
	if d.username != "" {
		req.SetBasicAuth(d.username, d.password)
	}

	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, &TransportError{Kind: TransportProxyNegotiation, Err: err, Retryable: true}
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, &TransportError{Kind: TransportProxyNegotiation, Err: err, Retryable: true}
	}
	conn.SetReadDeadline(time.Time{})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, &TransportError{Kind: TransportProxyNegotiation, Err: fmt.Errorf("proxy CONNECT failed: %s", resp.Status), Retryable: true}
	}

	return conn, nil
}
