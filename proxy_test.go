// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"bufio"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProxyDialerNoneReturnsBase(t *testing.T) {
	base := &net.Dialer{}
	d, err := newProxyDialer(ProxyConfig{Kind: ProxyNone}, base)
	assert.NoError(t, err)
	assert.Same(t, ProxyDialer(base), d)
}

func TestNewProxyDialerUnknownKindErrors(t *testing.T) {
	_, err := newProxyDialer(ProxyConfig{Kind: ProxyKind(99)}, &net.Dialer{})
	assert.Error(t, err)
}

func TestNewProxyDialerSocks5Constructs(t *testing.T) {
	d, err := newProxyDialer(ProxyConfig{Kind: ProxySocks5, Host: "127.0.0.1", Port: 1080}, &net.Dialer{})
	assert.NoError(t, err)
	assert.NotNil(t, d)
}

func TestHTTPConnectDialerNegotiatesConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req, err := http.ReadRequest(bufio.NewReader(conn))
		if err != nil {
			return
		}
		if req.Method != http.MethodConnect {
			conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
			return
		}
		conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
	}()

	d := &httpConnectDialer{proxyAddr: ln.Addr().String(), base: &net.Dialer{}}
	conn, err := d.Dial("tcp", "irc.example.com:6697")
	assert.NoError(t, err)
	if conn != nil {
		conn.Close()
	}
}

func TestHTTPConnectDialerRejectsNonOK(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = http.ReadRequest(bufio.NewReader(conn))
		conn.Write([]byte("HTTP/1.1 403 Forbidden\r\n\r\n"))
	}()

	d := &httpConnectDialer{proxyAddr: ln.Addr().String(), base: &net.Dialer{}}
	_, err = d.Dial("tcp", "irc.example.com:6697")
	assert.Error(t, err)
}
