// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package brokertest

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/nilsbloom/httpbroker/broker"
	"github.com/nilsbloom/httpbroker/wire"
)

// Dispatch answers one request read off the server side of a mock
// connection. It is called on its own task (goroutine), one call at a
// time per connection, in the order requests were pipelined.
type Dispatch func(*http.Request) *http.Response

// MockConnectionBroker implements broker.ConnectionBroker over a map
// of origin key to an in-memory (client, server) pair built on
// net.Pipe. On a cache miss it builds a fresh pipe, wraps each end in
// the real wire.ClientConnection/wire.ServerConnection framing, and
// spawns a task running the server's read-dispatch-write loop bound to
// dispatch.
type MockConnectionBroker struct {
	dispatch Dispatch

	mu      sync.Mutex
	entries map[string]*mockEntry
}

type mockEntry struct {
	client *wire.ClientConnection
	server *wire.ServerConnection
}

// NewMockConnectionBroker returns a MockConnectionBroker whose server
// side answers every request with dispatch.
func NewMockConnectionBroker(dispatch Dispatch) *MockConnectionBroker {
	return &MockConnectionBroker{dispatch: dispatch, entries: make(map[string]*mockEntry)}
}

// GetConnection implements broker.ConnectionBroker. It never reports
// viaProxy=true.
func (m *MockConnectionBroker) GetConnection(uri *url.URL, forceNew bool) (broker.ClientConnection, bool, error) {
	key := broker.OriginKey(uri).String()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !forceNew {
		if e, ok := m.entries[key]; ok {
			if e.client.NewRequestsAllowed() {
				return e.client, false, nil
			}
			delete(m.entries, key)
		}
	}

	clientSide, serverSide := net.Pipe()
	client := wire.NewClientConnection(pipeStream{clientSide})
	server := wire.NewServerConnection(pipeStream{serverSide})

	go m.serve(server)

	m.entries[key] = &mockEntry{client: client, server: server}
	return client, false, nil
}

// CloseConnections implements broker.ConnectionBroker.
func (m *MockConnectionBroker) CloseConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		e.client.Stream().CancelRead()
		e.client.Stream().CancelWrite()
		_ = e.server.Close()
		delete(m.entries, key)
	}
}

// serve runs the server-side request loop: read one request, dispatch
// it, write the response, repeat, until the pipe closes.
func (m *MockConnectionBroker) serve(s *wire.ServerConnection) {
	for {
		req, err := s.ReadRequest()
		if err != nil {
			return
		}
		resp := m.dispatch(req)
		if err := s.WriteResponse(resp); err != nil {
			return
		}
	}
}

// NewResponse builds a minimal, well-formed *http.Response suitable
// for a Dispatch function to return: status code status, a fixed body,
// and HTTP/1.1 framing fields set so http.Response.Write doesn't need
// to guess them.
func NewResponse(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          newBodyCloser(body),
		ContentLength: int64(len(body)),
	}
}

// cancelDeadline forces any in-progress or future Read/Write on a
// pipeStream to fail immediately, the same deadline-based cancellation
// idiom package stream uses for real sockets.
var cancelDeadline = time.Unix(1, 0)

// pipeStream adapts a net.Pipe half to broker.Stream.
type pipeStream struct {
	net.Conn
}

func (s pipeStream) CancelRead()  { _ = s.Conn.SetReadDeadline(cancelDeadline) }
func (s pipeStream) CancelWrite() { _ = s.Conn.SetWriteDeadline(cancelDeadline) }

func newBodyCloser(body []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(body))
}
