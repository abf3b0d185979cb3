// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/proxy"

	"github.com/stdchat/ircgateway/config"
)

// Transport opens the byte stream to an IRC server. A TLS transport returns
// only after the handshake completed.
type Transport interface {
	Dial(ctx context.Context, server config.ServerDefinition, socks config.Proxy) (net.Conn, error)
	Secure() bool
}

// TransportFunc picks the transport for a server.
type TransportFunc func(server config.ServerDefinition, socks config.Proxy) Transport

type plainTransport struct {
	timeout time.Duration
}

type tlsTransport struct {
	plainTransport
}

type socksTransport struct {
	timeout time.Duration
}

type socksTLSTransport struct {
	socksTransport
}

// transportFor selects one of the four transports: plain TCP, TLS,
// SOCKS5, or TLS through SOCKS5.
func transportFor(server config.ServerDefinition, socks config.Proxy) Transport {
	const timeout = time.Minute
	if server.Proxy && socks.Enabled() {
		if server.TLS {
			return socksTLSTransport{socksTransport{timeout}}
		}
		return socksTransport{timeout}
	}
	if server.TLS {
		return tlsTransport{plainTransport{timeout}}
	}
	return plainTransport{timeout}
}

func serverAddr(server config.ServerDefinition) string {
	return net.JoinHostPort(server.Host, strconv.Itoa(server.Port))
}

func (t plainTransport) Dial(ctx context.Context, server config.ServerDefinition, _ config.Proxy) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: t.timeout}
	return dialer.DialContext(ctx, "tcp", serverAddr(server))
}

func (plainTransport) Secure() bool { return false }

func (t tlsTransport) Dial(ctx context.Context, server config.ServerDefinition, socks config.Proxy) (net.Conn, error) {
	conn, err := t.plainTransport.Dial(ctx, server, socks)
	if err != nil {
		return nil, err
	}
	return tlsHandshake(ctx, conn, server)
}

func (tlsTransport) Secure() bool { return true }

func (t socksTransport) Dial(ctx context.Context, server config.ServerDefinition, socks config.Proxy) (net.Conn, error) {
	var auth *proxy.Auth
	if socks.Username != "" {
		auth = &proxy.Auth{User: socks.Username, Password: socks.Password}
	}
	socksAddr := net.JoinHostPort(socks.Host, strconv.Itoa(socks.Port))
	dialer, err := proxy.SOCKS5("tcp", socksAddr, auth, &net.Dialer{Timeout: t.timeout})
	if err != nil {
		return nil, err
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, "tcp", serverAddr(server))
	}
	return dialer.Dial("tcp", serverAddr(server))
}

func (socksTransport) Secure() bool { return false }

func (t socksTLSTransport) Dial(ctx context.Context, server config.ServerDefinition, socks config.Proxy) (net.Conn, error) {
	conn, err := t.socksTransport.Dial(ctx, server, socks)
	if err != nil {
		return nil, err
	}
	return tlsHandshake(ctx, conn, server)
}

func (socksTLSTransport) Secure() bool { return true }

// tlsHandshake wraps conn and completes the handshake; conn is closed on failure.
func tlsHandshake(ctx context.Context, conn net.Conn, server config.ServerDefinition) (net.Conn, error) {
	tlsConn := tls.Client(conn, &tls.Config{
		ServerName:         server.Host,
		InsecureSkipVerify: !server.Verify,
	})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}
