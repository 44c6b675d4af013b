// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"io"
	"net/http"
	"sync"

	"github.com/nilsbloom/httpbroker/broker"
)

// clientRequest implements broker.ClientRequest for one exchange
// dispatched on a ClientConnection.
type clientRequest struct {
	req     *http.Request
	hasBody bool
	conn    *ClientConnection

	done     chan struct{}
	once     sync.Once
	resp     *http.Response
	err      error
	finished bool
}

// deliver completes the exchange, called exactly once by the owning
// ClientConnection's read loop (directly on success, or via fail on a
// connection-fatal read error).
func (cr *clientRequest) deliver(resp *http.Response, err error) {
	cr.once.Do(func() {
		cr.resp = resp
		cr.err = err
		close(cr.done)
	})
}

// Response implements broker.ClientRequest.
func (cr *clientRequest) Response() (*http.Response, error) {
	<-cr.done
	return cr.resp, cr.err
}

// HasRequestBody implements broker.ClientRequest.
func (cr *clientRequest) HasRequestBody() bool {
	return cr.hasBody
}

// Stream detaches and returns the ClientConnection's underlying
// broker.Stream. It exists so package proxy can hand the raw tunnel
// bytes of a successful CONNECT exchange to the SSL layer, bypassing
// HTTP/1.x framing for everything that follows. Callers that
// type-assert a broker.ClientRequest for a Stream method must only do
// so after Response has returned a successful CONNECT response; the
// owning connection accepts no further requests afterward.
func (cr *clientRequest) Stream() broker.Stream {
	return cr.conn.tunnelStream()
}

// Finish implements broker.ClientRequest. It drains and closes any
// unread response body so the underlying connection can be reused,
// and releases the connection's outstanding-request slot.
func (cr *clientRequest) Finish() error {
	<-cr.done
	if cr.finished {
		return nil
	}
	cr.finished = true
	var closeErr error
	if cr.resp != nil && cr.resp.Body != nil {
		_, _ = io.Copy(io.Discard, cr.resp.Body)
		closeErr = cr.resp.Body.Close()
	}
	cr.conn.release()
	return closeErr
}
