// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"bufio"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/nilsbloom/httpbroker/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHeaders(t *testing.T, method, rawURL string, body interface{}) *broker.Headers {
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	h, err := broker.NewHeaders(context.Background(), method, u, body)
	require.NoError(t, err)
	return h
}

func TestClientConnection_RoundTrip(t *testing.T) {
	client, server := newPipeStreams()
	conn := NewClientConnection(client)
	srv := NewServerConnection(server)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		req, err := srv.ReadRequest()
		if !assert.NoError(t, err) {
			return
		}
		body, _ := ioutil.ReadAll(req.Body)
		assert.Equal(t, "hello", string(body))
		resp := &http.Response{
			StatusCode: 200,
			Status:     "200 OK",
			Proto:      "HTTP/1.1",
			ProtoMajor: 1,
			ProtoMinor: 1,
			Header:     make(http.Header),
			Body:       ioutil.NopCloser(strings.NewReader("world")),
		}
		resp.ContentLength = int64(len("world"))
		assert.NoError(t, srv.WriteResponse(resp))
	}()

	h := mustHeaders(t, http.MethodPost, "http://example.com/echo", "hello")
	cr, err := conn.Request(h)
	require.NoError(t, err)
	assert.Equal(t, 1, conn.OutstandingRequests())

	resp, err := cr.Response()
	require.NoError(t, err)
	b, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "world", string(b))
	assert.True(t, cr.HasRequestBody())

	require.NoError(t, cr.Finish())
	assert.Equal(t, 0, conn.OutstandingRequests())

	<-serverDone
}

func TestClientConnection_Pipelining(t *testing.T) {
	const n = 8
	client, server := newPipeStreams()
	conn := NewClientConnection(client)
	srv := NewServerConnection(server)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		for i := 0; i < n; i++ {
			req, err := srv.ReadRequest()
			if !assert.NoError(t, err) {
				return
			}
			body, _ := ioutil.ReadAll(req.Body)
			resp := &http.Response{
				StatusCode: 200,
				Status:     "200 OK",
				Proto:      "HTTP/1.1",
				ProtoMajor: 1,
				ProtoMinor: 1,
				Header:     make(http.Header),
				Body:       ioutil.NopCloser(strings.NewReader(string(body))),
			}
			resp.ContentLength = int64(len(body))
			if !assert.NoError(t, srv.WriteResponse(resp)) {
				return
			}
		}
	}()

	reqs := make([]broker.ClientRequest, n)
	for i := 0; i < n; i++ {
		h := mustHeaders(t, http.MethodPost, "http://example.com/echo", string([]byte{byte('a' + i)}))
		cr, err := conn.Request(h)
		require.NoError(t, err)
		reqs[i] = cr
	}

	for i := 0; i < n; i++ {
		resp, err := reqs[i].Response()
		require.NoError(t, err)
		b, err := ioutil.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, string([]byte{byte('a' + i)}), string(b))
		require.NoError(t, reqs[i].Finish())
	}

	<-serverDone
}

func TestClientConnection_PriorRequestFailed(t *testing.T) {
	client, server := newPipeStreams()
	conn := NewClientConnection(client)

	// Drain the request bytes on the server side without ever
	// answering, so conn.Request's synchronous write does not block
	// forever on the unbuffered pipe.
	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		_, _ = io.Copy(ioutil.Discard, server)
	}()

	h1 := mustHeaders(t, http.MethodGet, "http://example.com/one", nil)
	cr1, err := conn.Request(h1)
	require.NoError(t, err)
	h2 := mustHeaders(t, http.MethodGet, "http://example.com/two", nil)
	cr2, err := conn.Request(h2)
	require.NoError(t, err)

	// Close the server side without ever answering, forcing
	// http.ReadResponse to fail on cr1 and cascade a
	// PriorRequestFailed to cr2.
	require.NoError(t, server.Close())
	<-drainDone

	_, err1 := cr1.Response()
	assert.Error(t, err1)

	_, err2 := cr2.Response()
	require.Error(t, err2)
	assert.True(t, broker.Retryable(err2))

	// A connection that has failed refuses further requests.
	h3 := mustHeaders(t, http.MethodGet, "http://example.com/three", nil)
	_, err = conn.Request(h3)
	assert.Error(t, err)
	assert.False(t, conn.NewRequestsAllowed())
}

func TestClientConnection_TunnelHandoff(t *testing.T) {
	client, server := newPipeStreams()
	conn := NewClientConnection(client)

	go func() {
		br := bufio.NewReader(server)
		if _, err := http.ReadRequest(br); err != nil {
			return
		}
		// Respond to the CONNECT and push tunneled bytes in the same
		// write, so some of them land in the client's framing buffer.
		_, _ = server.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\ntunnel-payload"))
	}()

	h := mustHeaders(t, http.MethodConnect, "http://proxy.local:8080", nil)
	cr, err := conn.Request(h)
	require.NoError(t, err)

	resp, err := cr.Response()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	type streamer interface{ Stream() broker.Stream }
	tun := cr.(streamer).Stream()

	buf := make([]byte, 32)
	n, err := tun.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "tunnel-payload", string(buf[:n]))

	// The connection is consumed by the handoff.
	assert.False(t, conn.NewRequestsAllowed())
}

func TestClientConnection_NewRequestsAllowed(t *testing.T) {
	client, _ := newPipeStreams()
	conn := NewClientConnection(client)
	assert.True(t, conn.NewRequestsAllowed())
}
