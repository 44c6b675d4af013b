// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package reqbroker

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/nilsbloom/httpbroker/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClientRequest struct {
	resp    *http.Response
	err     error
	hasBody bool
	finishN int
}

func (r *fakeClientRequest) Response() (*http.Response, error) { return r.resp, r.err }
func (r *fakeClientRequest) HasRequestBody() bool               { return r.hasBody }
func (r *fakeClientRequest) Finish() error                      { r.finishN++; return nil }

type fakeConn struct {
	dispatch func(*broker.Headers) (broker.ClientRequest, error)
	calls    []*url.URL
}

func (c *fakeConn) Request(h *broker.Headers) (broker.ClientRequest, error) {
	u := *h.RequestLine.URI
	c.calls = append(c.calls, &u)
	return c.dispatch(h)
}
func (c *fakeConn) OutstandingRequests() int     { return 0 }
func (c *fakeConn) NewRequestsAllowed() bool     { return true }
func (c *fakeConn) Stream() broker.Stream        { return nil }

type fakeConnBroker struct {
	conn       *fakeConn
	viaProxy   bool
	dialErr    error
	dialed     []*url.URL
	failNDials int
}

func (b *fakeConnBroker) GetConnection(uri *url.URL, forceNew bool) (broker.ClientConnection, bool, error) {
	b.dialed = append(b.dialed, uri)
	if b.failNDials > 0 {
		b.failNDials--
		return nil, false, b.dialErr
	}
	return b.conn, b.viaProxy, nil
}
func (b *fakeConnBroker) CloseConnections() {}

func newHeaders(t *testing.T, method, raw string) *broker.Headers {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	h, err := broker.NewHeaders(context.Background(), method, u, nil)
	require.NoError(t, err)
	return h
}

func TestBaseRequestBroker_SetsHostAndStripsAuthorityWhenDirect(t *testing.T) {
	conn := &fakeConn{dispatch: func(h *broker.Headers) (broker.ClientRequest, error) {
		return &fakeClientRequest{resp: &http.Response{StatusCode: 200}}, nil
	}}
	cb := &fakeConnBroker{conn: conn, viaProxy: false}
	b := NewBaseRequestBroker(cb, nil)

	h := newHeaders(t, http.MethodGet, "http://example.com/path?q=1")
	_, err := b.Request(h, false)
	require.NoError(t, err)

	assert.Equal(t, "example.com", h.Header.Get("Host"))
	require.Len(t, conn.calls, 1)
	assert.Equal(t, "", conn.calls[0].Host, "origin-form strips authority for a direct connection")
	assert.Equal(t, "/path", conn.calls[0].Path)
	// Request-line URI is restored to its input value on return.
	assert.Equal(t, "http://example.com/path?q=1", h.RequestLine.URI.String())
}

func TestBaseRequestBroker_RestoresAuthorityWhenProxied(t *testing.T) {
	conn := &fakeConn{dispatch: func(h *broker.Headers) (broker.ClientRequest, error) {
		return &fakeClientRequest{resp: &http.Response{StatusCode: 200}}, nil
	}}
	cb := &fakeConnBroker{conn: conn, viaProxy: true}
	b := NewBaseRequestBroker(cb, nil)

	h := newHeaders(t, http.MethodGet, "http://example.com/path")
	_, err := b.Request(h, false)
	require.NoError(t, err)

	require.Len(t, conn.calls, 1)
	assert.Equal(t, "example.com", conn.calls[0].Host, "absolute-form keeps authority for a proxied connection")
}

func TestBaseRequestBroker_RetriesSocketErrorWithoutCap(t *testing.T) {
	attempts := 0
	conn := &fakeConn{dispatch: func(h *broker.Headers) (broker.ClientRequest, error) {
		attempts++
		if attempts < 4 {
			return nil, broker.NewError("wire.Request", broker.SocketError, nil)
		}
		return &fakeClientRequest{resp: &http.Response{StatusCode: 200}}, nil
	}}
	cb := &fakeConnBroker{conn: conn}
	b := NewBaseRequestBroker(cb, nil)

	h := newHeaders(t, http.MethodGet, "http://example.com/")
	_, err := b.Request(h, false)
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
}

func TestBaseRequestBroker_DialFailurePropagates(t *testing.T) {
	// Only dispatch failures are retried; a failure to obtain a
	// connection at all surfaces immediately.
	cb := &fakeConnBroker{
		failNDials: 1,
		dialErr:    broker.NewError("connpool.GetConnection", broker.SocketError, nil),
	}
	b := NewBaseRequestBroker(cb, nil)

	h := newHeaders(t, http.MethodGet, "http://example.com/")
	_, err := b.Request(h, false)
	require.Error(t, err)
	assert.True(t, broker.Retryable(err))
	assert.Len(t, cb.dialed, 1)
	// The request-line URI is still restored on the failure path.
	assert.Equal(t, "http://example.com/", h.RequestLine.URI.String())
}

func TestBaseRequestBroker_DoesNotRetryTLSError(t *testing.T) {
	conn := &fakeConn{dispatch: func(h *broker.Headers) (broker.ClientRequest, error) {
		return nil, broker.NewError("wire.Request", broker.TLSError, nil)
	}}
	cb := &fakeConnBroker{conn: conn}
	b := NewBaseRequestBroker(cb, nil)

	h := newHeaders(t, http.MethodGet, "https://example.com/")
	_, err := b.Request(h, false)
	require.Error(t, err)
	assert.False(t, broker.IsAborted(err))
	var be *broker.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, broker.TLSError, be.Kind)
	assert.Len(t, conn.calls, 1)
}

func TestBaseRequestBroker_WithMaxRetriesCapsAttempts(t *testing.T) {
	attempts := 0
	conn := &fakeConn{dispatch: func(h *broker.Headers) (broker.ClientRequest, error) {
		attempts++
		return nil, broker.NewError("wire.Request", broker.SocketError, nil)
	}}
	cb := &fakeConnBroker{conn: conn}
	b := NewBaseRequestBroker(cb, nil, WithMaxRetries(2))

	h := newHeaders(t, http.MethodGet, "http://example.com/")
	_, err := b.Request(h, false)
	require.Error(t, err)
	// One initial attempt plus two retries.
	assert.Equal(t, 3, attempts)
}

func TestBaseRequestBroker_RejectsInvalidHeaderValue(t *testing.T) {
	conn := &fakeConn{dispatch: func(h *broker.Headers) (broker.ClientRequest, error) {
		return &fakeClientRequest{resp: &http.Response{StatusCode: 200}}, nil
	}}
	cb := &fakeConnBroker{conn: conn}
	b := NewBaseRequestBroker(cb, nil)

	h := newHeaders(t, http.MethodGet, "http://example.com/")
	h.Header.Set("X-Bad", "line1\r\nline2")

	_, err := b.Request(h, false)
	require.Error(t, err)
	var be *broker.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, broker.HTTPProtocolError, be.Kind)
	assert.Empty(t, conn.calls, "validation fails before any connection is dialed")
}

func TestBaseRequestBroker_ConnectDialsHostHeader(t *testing.T) {
	conn := &fakeConn{dispatch: func(h *broker.Headers) (broker.ClientRequest, error) {
		return &fakeClientRequest{resp: &http.Response{StatusCode: 200}}, nil
	}}
	cb := &fakeConnBroker{conn: conn}
	b := NewBaseRequestBroker(cb, nil)

	// A CONNECT carries the tunnel target in its request line; the
	// Host header names the proxy the tunnel goes through.
	u, err := url.Parse("//target.example.com:443")
	require.NoError(t, err)
	h, err := broker.NewHeaders(context.Background(), http.MethodConnect, u, nil)
	require.NoError(t, err)
	h.Header.Set("Host", "proxy.example.com:8080")

	_, err = b.Request(h, false)
	require.NoError(t, err)

	// The connection is dialed against the proxy...
	require.Len(t, cb.dialed, 1)
	assert.Equal(t, "proxy.example.com:8080", cb.dialed[0].Host)
	// ...while the wire request line keeps the tunnel target.
	require.Len(t, conn.calls, 1)
	assert.Equal(t, "target.example.com:443", conn.calls[0].Host)
	assert.Equal(t, "target.example.com:443", h.RequestLine.URI.Host)
}

func TestBaseRequestBroker_ConnectRequiresHostHeader(t *testing.T) {
	cb := &fakeConnBroker{}
	b := NewBaseRequestBroker(cb, nil)

	u, err := url.Parse("//target.example.com:443")
	require.NoError(t, err)
	h, err := broker.NewHeaders(context.Background(), http.MethodConnect, u, nil)
	require.NoError(t, err)

	_, err = b.Request(h, false)
	require.Error(t, err)
	var be *broker.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, broker.HTTPProtocolError, be.Kind)
	assert.Empty(t, cb.dialed)
}
