// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/nilsbloom/httpbroker/broker"
)

// StreamBroker implements broker.StreamBrokerFilter. It sits between
// the socket broker and the SSL filter: for anything but an https URI
// with a resolved proxy candidate it delegates to its parent
// (ordinarily a direct-dial stream.SocketStreamBroker). For an https
// URI that needs tunneling, it issues a CONNECT through RequestBroker
// and returns the raw post-CONNECT Stream so the SSL layer reparented
// onto this broker can run its TLS handshake over the tunnel. Plain
// http URIs never tunnel here; they go through a proxy, if any, in
// absolute-form at the connection-broker level instead.
//
// RequestBroker is left nil by NewStreamBroker and must be set with
// SetRequestBroker once the CONNECT-issuing chain exists; that chain
// in turn ends at this broker's own parent, so the two sides cannot
// reference each other until both are built.
type StreamBroker struct {
	parent        broker.StreamBroker
	RequestBroker broker.RequestBroker
	resolve       Resolver
}

// NewStreamBroker returns a StreamBroker delegating direct dials to
// parent and resolving proxy candidates with resolve. A nil resolve
// always dials direct.
func NewStreamBroker(parent broker.StreamBroker, resolve Resolver) *StreamBroker {
	return &StreamBroker{parent: parent, resolve: resolve}
}

// Parent implements broker.StreamBrokerFilter.
func (b *StreamBroker) Parent() broker.StreamBroker { return b.parent }

// SetParent implements broker.StreamBrokerFilter.
func (b *StreamBroker) SetParent(p broker.StreamBroker) { b.parent = p }

// SetRequestBroker binds the RequestBroker used to issue CONNECT.
// Called once, after the inner RequestBroker chain (Socket -> SSL ->
// ConnectionCache -> Base) has been constructed.
func (b *StreamBroker) SetRequestBroker(rb broker.RequestBroker) { b.RequestBroker = rb }

// GetStream implements broker.StreamBroker.
func (b *StreamBroker) GetStream(uri *url.URL) (broker.Stream, error) {
	if b.resolve == nil || uri.Scheme != "https" {
		return b.parent.GetStream(uri)
	}
	candidates, err := b.resolve(uri)
	if err != nil {
		return nil, broker.NewError("proxy.GetStream", broker.SocketError, err)
	}
	if len(candidates) == 0 {
		return b.parent.GetStream(uri)
	}

	var lastErr error
	for _, p := range candidates {
		s, err := b.connect(p, uri)
		if err != nil {
			lastErr = err
			continue
		}
		return s, nil
	}
	return nil, lastErr
}

// CancelPending implements broker.StreamBroker by cancelling the
// direct-dial path. In-flight CONNECT exchanges dial through the same
// cache and socket broker this filter sits above, so cancelling the
// parent reaches them too.
func (b *StreamBroker) CancelPending() {
	b.parent.CancelPending()
}

// connect issues a CONNECT to target's host through the proxy at
// proxyURI and returns the raw tunnel Stream on a 200 response. The
// request-line URI carries the tunnel target's authority; the Host
// header names the proxy, which is what the dispatching
// BaseRequestBroker dials.
func (b *StreamBroker) connect(proxyURI, target *url.URL) (broker.Stream, error) {
	if b.RequestBroker == nil {
		return nil, broker.NewError("proxy.GetStream", broker.SocketError, errors.New("proxy: no RequestBroker bound for CONNECT"))
	}

	headers, err := broker.NewHeaders(context.Background(), http.MethodConnect, &url.URL{Host: connectTarget(target)}, nil)
	if err != nil {
		return nil, err
	}
	headers.Header.Set("Host", proxyURI.Host)

	req, err := b.RequestBroker.Request(headers, true)
	if err != nil {
		return nil, err
	}
	resp, err := req.Response()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = req.Finish()
		return nil, broker.NewError("proxy.GetStream", broker.SocketError,
			fmt.Errorf("proxy CONNECT to %s failed: %s", target.Host, resp.Status))
	}

	type streamer interface{ Stream() broker.Stream }
	s, ok := req.(streamer)
	if !ok {
		return nil, broker.NewError("proxy.GetStream", broker.HTTPProtocolError,
			errors.New("proxy: CONNECT response does not expose a tunnel stream"))
	}
	return s.Stream(), nil
}

func connectTarget(uri *url.URL) string {
	if uri.Port() != "" {
		return uri.Host
	}
	switch uri.Scheme {
	case "https":
		return net.JoinHostPort(uri.Hostname(), "443")
	default:
		return net.JoinHostPort(uri.Hostname(), "80")
	}
}
