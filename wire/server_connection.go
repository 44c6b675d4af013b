// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"bufio"
	"net/http"

	"github.com/nilsbloom/httpbroker/broker"
)

// ServerConnection is the peer-side counterpart to ClientConnection,
// used by package brokertest to play the server end of a broker.Stream
// pipe without depending on net/http/httptest's real listener socket.
// It reads requests and writes responses in strict alternation, which
// is sufficient to exercise pipelined ClientConnection behavior: the
// client may have several requests in flight, but ServerConnection
// answers them one at a time, in arrival order, exactly as a
// well-behaved HTTP/1.1 server does.
type ServerConnection struct {
	stream broker.Stream
	reader *bufio.Reader
}

// NewServerConnection returns a ServerConnection that frames HTTP/1.x
// requests and responses over stream.
func NewServerConnection(stream broker.Stream) *ServerConnection {
	return &ServerConnection{stream: stream, reader: bufio.NewReader(stream)}
}

// ReadRequest blocks until the next request is fully framed and
// returns it. The returned request's Body, if any, has already been
// separated from the connection's byte stream by net/http's parser and
// may be read at leisure.
func (s *ServerConnection) ReadRequest() (*http.Request, error) {
	req, err := http.ReadRequest(s.reader)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// WriteResponse serializes resp onto the connection. Callers must call
// WriteResponse once per ReadRequest, in the order the requests were
// read, to preserve HTTP/1.1 response ordering.
func (s *ServerConnection) WriteResponse(resp *http.Response) error {
	return resp.Write(s.stream)
}

// Close closes the underlying stream.
func (s *ServerConnection) Close() error {
	return s.stream.Close()
}
