// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package broker

import (
	"net/http"
	"net/url"
)

// A Stream is a bidirectional byte channel connected to an origin or
// proxy, supporting independent cancellation of pending reads and
// writes.
type Stream interface {
	Reader
	Writer
	// CancelRead aborts any read currently in progress (or about to
	// start) on this stream, causing it to fail with a broker Error of
	// Kind Aborted.
	CancelRead()
	// CancelWrite aborts any write currently in progress (or about to
	// start) on this stream, causing it to fail with a broker Error of
	// Kind Aborted.
	CancelWrite()
	// Close releases the underlying transport resource.
	Close() error
}

// Reader and Writer mirror io.Reader/io.Writer; they are spelled out
// here (rather than embedding io.Reader/io.Writer) so Stream's
// documentation can live in one place without forcing every
// implementation to satisfy io.Reader/io.Writer as distinct named
// types too.
type Reader interface {
	Read(p []byte) (n int, err error)
}

type Writer interface {
	Write(p []byte) (n int, err error)
}

// A ClientConnection wraps a Stream and exposes a framed HTTP client
// bound to it. It serializes its own pipeline internally; brokers
// treat it as opaque beyond the four methods below.
type ClientConnection interface {
	// Request dispatches headers as a new request attempt on this
	// connection and returns a handle to the in-flight exchange.
	// Request itself does not block on the response; it only reserves
	// a slot in the connection's pipeline and (depending on the
	// implementation) sends the request line and headers.
	Request(headers *Headers) (ClientRequest, error)
	// OutstandingRequests returns the number of requests dispatched on
	// this connection whose response has not yet been fully consumed.
	// The connection cache's least-loaded selection policy orders ready
	// slots by this count.
	OutstandingRequests() int
	// NewRequestsAllowed reports whether the connection will accept a
	// further Request call. It returns false once the peer has
	// initiated a close, a protocol-level fatal error has occurred, or
	// the connection has been administratively closed.
	NewRequestsAllowed() bool
	// Stream returns the underlying Stream, primarily so
	// ConnectionCache.CloseConnections can cancel I/O on it directly.
	Stream() Stream
}

// A ClientRequest is a handle to one live request/response exchange on
// a ClientConnection.
type ClientRequest interface {
	// Response blocks until the response to this request is available,
	// or an error occurs. Calling Response more than once returns the
	// same result.
	Response() (*http.Response, error)
	// HasRequestBody reports whether this request carries a body,
	// which RedirectRequestBroker consults to suppress redirection on
	// exchanges whose body may be a one-shot stream.
	HasRequestBody() bool
	// Finish releases any resources associated with the exchange (for
	// example draining an unread response body) so the connection can
	// be reused for a subsequent request.
	Finish() error
}

// A StreamBroker produces a Stream connected to the origin (or proxy)
// identified by uri.
type StreamBroker interface {
	// GetStream returns a Stream connected to uri. It may suspend
	// (resolve addresses, connect, handshake).
	GetStream(uri *url.URL) (Stream, error)
	// CancelPending aborts all in-flight GetStream calls and latches a
	// cancelled state: subsequent GetStream calls fail immediately with
	// Kind Aborted.
	CancelPending()
}

// A StreamBrokerFilter is a StreamBroker that delegates to a parent
// StreamBroker of the same kind, adding behavior (SSL, proxying).
// Parent is exposed both for read and rebinding because the SSL and
// proxy brokers form a cycle at construction time: SSLStreamBroker's
// parent is rebound after the outer proxy-aware StreamBroker chain
// has been built.
type StreamBrokerFilter interface {
	StreamBroker
	Parent() StreamBroker
	SetParent(StreamBroker)
}

// A ConnectionBroker produces a ClientConnection for uri.
type ConnectionBroker interface {
	// GetConnection returns an existing or freshly dialed
	// ClientConnection for uri's origin, and whether it was obtained
	// via a proxy. forceNew bypasses reuse of an existing connection.
	GetConnection(uri *url.URL, forceNew bool) (conn ClientConnection, viaProxy bool, err error)
	// CloseConnections cancels all pending dials and closes every live
	// pooled connection.
	CloseConnections()
}

// A RequestBroker dispatches one logical request.
type RequestBroker interface {
	// Request dispatches headers, selecting or establishing a
	// connection as needed, and returns a handle to the in-flight
	// exchange. forceNew is threaded through to the underlying
	// ConnectionBroker.
	Request(headers *Headers, forceNew bool) (ClientRequest, error)
}

// A RequestBrokerFilter is a RequestBroker that delegates to a parent
// RequestBroker of the same kind, adding behavior (redirects, user
// filters).
type RequestBrokerFilter interface {
	RequestBroker
	// CheckResponse inspects the response just obtained for headers and
	// reports whether the filter consumed it and wants the caller to
	// redispatch (for example because it was a redirect the filter
	// followed internally).
	CheckResponse(headers *Headers, req ClientRequest) (redispatch bool, err error)
	Parent() RequestBroker
	SetParent(RequestBroker)
}
