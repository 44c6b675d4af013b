// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package reqbroker

import (
	"net/http"
	"net/url"

	"github.com/nilsbloom/httpbroker/broker"
	"golang.org/x/net/http/httpguts"
)

// BaseRequestBroker implements broker.RequestBroker. It selects or
// establishes a connection through a ConnectionBroker, rewrites the
// request-line URI between origin-form and absolute-form depending on
// whether the chosen connection is proxied, and retries
// broker.SocketError/broker.PriorRequestFailed failures from dispatch
// without limit unless WithMaxRetries imposes a cap. Both classes are
// connection-level and no bytes of the new request have reached the
// wire when they occur, so retrying is safe regardless of method
// idempotence. A failure to obtain a connection in the first place is
// not retried; it propagates to the caller as classified.
type BaseRequestBroker struct {
	conn       broker.ConnectionBroker
	handlers   *broker.HandlerGroup
	maxRetries int // 0 means unlimited
}

// Option configures a BaseRequestBroker at construction time.
type Option func(*BaseRequestBroker)

// NewBaseRequestBroker returns a BaseRequestBroker dispatching through
// conn. handlers may be nil.
func NewBaseRequestBroker(conn broker.ConnectionBroker, handlers *broker.HandlerGroup, opts ...Option) *BaseRequestBroker {
	b := &BaseRequestBroker{conn: conn, handlers: handlers}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Request implements broker.RequestBroker.
func (b *BaseRequestBroker) Request(headers *broker.Headers, forceNew bool) (broker.ClientRequest, error) {
	entryURI := headers.RequestLine.URI
	isConnect := headers.RequestLine.Method == http.MethodConnect

	dialURI := entryURI
	if isConnect {
		// A CONNECT carries its tunnel target in the request line
		// itself; the Host header names the proxy, which is what this
		// broker dials.
		host := headers.Header.Get("Host")
		if host == "" || !httpguts.ValidHostHeader(host) {
			return nil, broker.NewError("reqbroker.Request", broker.HTTPProtocolError, errInvalidHost(host))
		}
		dialURI = &url.URL{Scheme: "http", Host: host}
	} else {
		host := entryURI.Host
		if host == "" || !httpguts.ValidHostHeader(host) {
			return nil, broker.NewError("reqbroker.Request", broker.HTTPProtocolError, errInvalidHost(host))
		}
		headers.Header.Set("Host", host)
		defer func() { headers.RequestLine.URI = entryURI }()
	}

	for name, values := range headers.Header {
		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return nil, broker.NewError("reqbroker.Request", broker.HTTPProtocolError, errInvalidHeaderValue(name))
			}
		}
	}

	for attempt := 0; ; attempt++ {
		conn, viaProxy, err := b.conn.GetConnection(dialURI, forceNew)
		if err != nil {
			return nil, err
		}

		if !isConnect {
			switch {
			case !viaProxy && broker.HasAuthority(headers.RequestLine.URI):
				headers.RequestLine.URI = broker.StripAuthority(headers.RequestLine.URI)
			case viaProxy && !broker.HasAuthority(headers.RequestLine.URI):
				headers.RequestLine.URI = broker.RestoreAuthority(headers.RequestLine.URI, entryURI)
			}
		}

		req, err := conn.Request(headers)
		if err == nil {
			return req, nil
		}
		if !broker.Retryable(err) {
			return nil, err
		}
		if b.maxRetries > 0 && attempt >= b.maxRetries {
			return nil, err
		}
		b.handlers.Run(broker.Info{Event: broker.RequestRetried, URI: dialURI, Err: err})
	}
}

type errInvalidHost string

func (e errInvalidHost) Error() string { return "invalid Host header: " + string(e) }

type errInvalidHeaderValue string

func (e errInvalidHeaderValue) Error() string { return "invalid value for header " + string(e) }
