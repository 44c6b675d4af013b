// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpbroker

import (
	"github.com/nilsbloom/httpbroker/broker"
	"github.com/nilsbloom/httpbroker/connpool"
	"github.com/nilsbloom/httpbroker/fiber"
	"github.com/nilsbloom/httpbroker/proxy"
	"github.com/nilsbloom/httpbroker/reqbroker"
	"github.com/nilsbloom/httpbroker/stream"
)

// Options configures DefaultRequestBroker.
type Options struct {
	// Socket configures the SocketStreamBroker at the bottom of the
	// chain.
	Socket stream.SocketOptions
	// SSL configures the SSLStreamBroker.
	SSL stream.SSLOptions
	// ConnectionsPerHost bounds concurrent connections per origin in
	// the ConnectionCache. See connpool.DefaultConnectionsPerHost for
	// the zero-value default.
	ConnectionsPerHost int
	// MaxRetries caps BaseRequestBroker's connection-level retry loop.
	// Zero means unlimited.
	MaxRetries int
	// ProxyResolver picks proxy candidates per request. A nil
	// ProxyResolver defaults to proxy.NewEnvironmentResolver() unless
	// DisableProxy is set.
	ProxyResolver proxy.Resolver
	// DisableProxy, if true, skips proxy resolution entirely: every
	// request dials its origin directly.
	DisableProxy bool
	// Handlers receives every broker.Event fired by the cache and
	// request brokers. A nil Handlers is a safe no-op.
	Handlers *broker.HandlerGroup
}

// DefaultRequestBroker constructs the canonical broker chain. A single
// Socket -> SSL -> ConnectionCache -> Base chain is built first; that
// BaseRequestBroker exists only to issue CONNECT when tunneling
// through a proxy. Then the proxy layers are woven into the same
// chain: a proxy.StreamBroker is inserted between the socket broker
// and the SSL filter by reparenting the SSL filter onto it, and the
// cache is wrapped in a proxy.ConnectionBroker feeding the
// BaseRequestBroker -> RedirectRequestBroker pair returned to callers.
//
// The CONNECT-issuing side and the tunnel-consuming side reference
// each other, so construction happens in two phases: the plain chain
// is built first (it needs no forward reference), then the
// proxy.StreamBroker is created and the SSL filter reparented onto it.
//
// Every connection — direct, proxied, or tunneled — lives in the one
// ConnectionCache, which is returned for shutdown: its
// CloseConnections cancels pending dials (including in-flight CONNECT
// exchanges, which dial through the same cache) and closes every
// pooled connection.
func DefaultRequestBroker(scheduler fiber.Scheduler, opts Options) (broker.RequestBroker, broker.ConnectionBroker) {
	if scheduler == nil {
		scheduler = fiber.Default()
	}

	cacheOpts := connpool.Options{
		ConnectionsPerHost: opts.ConnectionsPerHost,
		Handlers:           opts.Handlers,
	}
	var baseOpts []reqbroker.Option
	if opts.MaxRetries > 0 {
		baseOpts = append(baseOpts, reqbroker.WithMaxRetries(opts.MaxRetries))
	}

	socket := stream.NewSocketStreamBroker(opts.Socket)
	ssl := stream.NewSSLStreamBroker(socket, opts.SSL)
	cache := connpool.NewConnectionCache(scheduler, ssl, cacheOpts)
	connectBroker := reqbroker.NewBaseRequestBroker(cache, opts.Handlers, baseOpts...)

	var resolver proxy.Resolver
	if !opts.DisableProxy {
		resolver = opts.ProxyResolver
		if resolver == nil {
			resolver = proxy.NewEnvironmentResolver()
		}
	}

	proxyStream := proxy.NewStreamBroker(socket, resolver)
	proxyStream.SetRequestBroker(connectBroker)
	ssl.SetParent(proxyStream)

	proxyConn := proxy.NewConnectionBroker(cache, resolver)
	base := reqbroker.NewBaseRequestBroker(proxyConn, opts.Handlers, baseOpts...)
	redirect := reqbroker.NewRedirectRequestBroker(base, opts.Handlers)

	return redirect, cache
}
