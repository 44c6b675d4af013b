// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package proxy

import (
	"net/url"

	"github.com/nilsbloom/httpbroker/broker"
	"golang.org/x/net/http/httpproxy"
)

// A Resolver returns the candidate proxy URIs to try, in order, for
// uri. A nil slice (with a nil error) means "dial uri directly."
type Resolver func(uri *url.URL) ([]*url.URL, error)

// NewEnvironmentResolver returns a Resolver backed by
// golang.org/x/net/http/httpproxy's environment-variable configuration
// (HTTP_PROXY, HTTPS_PROXY, NO_PROXY and their lowercase forms), the
// same package net/http.ProxyFromEnvironment itself is built on.
// httpproxy resolves at most one proxy per URI, so the returned
// Resolver wraps it in a zero-or-one-element slice.
func NewEnvironmentResolver() Resolver {
	cfg := httpproxy.FromEnvironment()
	fn := cfg.ProxyFunc()
	return func(uri *url.URL) ([]*url.URL, error) {
		p, err := fn(uri)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, nil
		}
		return []*url.URL{p}, nil
	}
}

// ConnectionBroker implements broker.ConnectionBroker. For a plain
// http target it resolves candidate proxies and redirects the dial to
// the proxy's own origin (the request then goes out in absolute-form),
// trying each candidate in turn and falling through to a direct
// connection if the resolver returns none. An https target always
// passes through with its own origin key: tunneling through a proxy
// is the StreamBroker layer's job, underneath the TLS handshake, and
// the resulting connection is private to that target rather than
// shared through the proxy's origin.
type ConnectionBroker struct {
	inner   broker.ConnectionBroker
	resolve Resolver
}

// NewConnectionBroker returns a ConnectionBroker delegating to inner
// for both proxied and direct origins, resolving candidates with
// resolve. A nil resolve always dials direct.
func NewConnectionBroker(inner broker.ConnectionBroker, resolve Resolver) *ConnectionBroker {
	return &ConnectionBroker{inner: inner, resolve: resolve}
}

// GetConnection implements broker.ConnectionBroker.
func (b *ConnectionBroker) GetConnection(uri *url.URL, forceNew bool) (broker.ClientConnection, bool, error) {
	if b.resolve == nil || uri.Scheme == "https" {
		conn, _, err := b.inner.GetConnection(uri, forceNew)
		return conn, false, err
	}
	candidates, err := b.resolve(uri)
	if err != nil {
		return nil, false, broker.NewError("proxy.GetConnection", broker.SocketError, err)
	}
	if len(candidates) == 0 {
		conn, _, err := b.inner.GetConnection(uri, forceNew)
		return conn, false, err
	}

	var lastErr error
	for _, p := range candidates {
		conn, _, err := b.inner.GetConnection(p, forceNew)
		if err != nil {
			lastErr = err
			continue
		}
		return conn, true, nil
	}
	return nil, false, lastErr
}

// CloseConnections implements broker.ConnectionBroker.
func (b *ConnectionBroker) CloseConnections() {
	b.inner.CloseConnections()
}
