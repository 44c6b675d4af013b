// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"bufio"
	"net/http"
	"sync"

	"github.com/nilsbloom/httpbroker/broker"
)

// ClientConnection implements broker.ClientConnection over a
// broker.Stream: a framed HTTP/1.x client bound to a stream. It hands
// the actual byte-level framing to net/http's *http.Request.Write and
// http.ReadResponse, so the wire format is exactly what net/http's own
// Transport would produce and expect.
//
// Request lines and headers are written to the Stream under writeMu,
// which serializes writes across concurrent Request callers and
// guarantees the order requests are enqueued for reading is the same
// order their bytes hit the wire. A single background goroutine reads
// responses off the Stream in that same order and delivers each to its
// clientRequest. If a read ever fails, every request still queued
// behind the failing one is completed with broker.PriorRequestFailed,
// since its bytes may or may not have reached the peer and any
// response it provoked can no longer be correlated.
type ClientConnection struct {
	stream broker.Stream
	reader *bufio.Reader

	writeMu sync.Mutex

	mu          sync.Mutex
	cond        *sync.Cond
	outstanding int
	closed      bool
	closeErr    error
	queue       []*clientRequest
}

// NewClientConnection returns a ClientConnection that frames HTTP/1.x
// requests and responses over stream and starts its background read
// loop.
func NewClientConnection(stream broker.Stream) *ClientConnection {
	c := &ClientConnection{
		stream: stream,
		reader: bufio.NewReader(stream),
	}
	c.cond = sync.NewCond(&c.mu)
	go c.readLoop()
	return c
}

// Request implements broker.ClientConnection.
func (c *ClientConnection) Request(headers *broker.Headers) (broker.ClientRequest, error) {
	req, err := headers.ToRequest(headers.Context())
	if err != nil {
		return nil, broker.NewError("wire.Request", broker.HTTPProtocolError, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		cause := c.closeErr
		c.mu.Unlock()
		if cause == nil {
			cause = broker.NewError("wire.Request", broker.PriorRequestFailed, nil)
		}
		return nil, cause
	}
	c.mu.Unlock()

	if err := req.Write(c.stream); err != nil {
		return nil, broker.Classify("wire.Request", err)
	}

	cr := &clientRequest{
		req:     req,
		hasBody: headers.HasBody(),
		conn:    c,
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	// The connection may have failed between the write above and here;
	// the read loop has already drained the queue in that case, so
	// enqueueing now would strand cr without a response.
	if c.closed {
		cause := c.closeErr
		c.mu.Unlock()
		return nil, broker.NewError("wire.Request", broker.PriorRequestFailed, cause)
	}
	c.outstanding++
	c.queue = append(c.queue, cr)
	c.cond.Signal()
	c.mu.Unlock()

	return cr, nil
}

// OutstandingRequests implements broker.ClientConnection.
func (c *ClientConnection) OutstandingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outstanding
}

// NewRequestsAllowed implements broker.ClientConnection.
func (c *ClientConnection) NewRequestsAllowed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Stream implements broker.ClientConnection.
func (c *ClientConnection) Stream() broker.Stream {
	return c.stream
}

// readLoop pops queued requests in dispatch order and reads one
// response per entry, until the connection is marked closed with an
// empty queue (by fail, or by the peer/caller closing the stream out
// from under a blocked ReadResponse).
func (c *ClientConnection) readLoop() {
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.cond.Wait()
		}
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		cr := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		resp, err := http.ReadResponse(c.reader, cr.req)
		if err != nil {
			cr.deliver(nil, broker.Classify("wire.readLoop", err))
			c.fail(broker.NewError("wire.readLoop", broker.PriorRequestFailed, err))
			return
		}
		cr.deliver(resp, nil)
	}
}

// fail marks the connection closed with cause and completes every
// request still queued with broker.PriorRequestFailed.
func (c *ClientConnection) fail(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = cause
	remaining := c.queue
	c.queue = nil
	c.cond.Broadcast()
	c.mu.Unlock()

	for _, cr := range remaining {
		cr.deliver(nil, broker.NewError("wire.readLoop", broker.PriorRequestFailed, cause))
	}
}

// release decrements the outstanding-request count; called by
// clientRequest.Finish once its response has been fully consumed.
func (c *ClientConnection) release() {
	c.mu.Lock()
	c.outstanding--
	c.mu.Unlock()
}

// tunnelStream detaches the connection's stream for use as a raw
// tunnel (after a successful CONNECT). The connection stops accepting
// requests and its read loop exits, so the returned Stream is the only
// reader left; any bytes the response reader had already buffered past
// the CONNECT response are prepended so none of the tunneled data is
// lost.
func (c *ClientConnection) tunnelStream() broker.Stream {
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()

	if c.reader.Buffered() > 0 {
		return &bufferedStream{r: c.reader, Stream: c.stream}
	}
	return c.stream
}

// bufferedStream serves reads from the framing reader's remaining
// buffer before falling through to the raw stream it embeds for
// writes, cancellation, and close.
type bufferedStream struct {
	r *bufio.Reader
	broker.Stream
}

func (s *bufferedStream) Read(p []byte) (int, error) { return s.r.Read(p) }
