// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"net"
	"time"
)

// cancelDeadline is set on a net.Conn to force any in-progress or
// future Read/Write to fail immediately, the standard Go idiom for
// cancelling blocking I/O on a connection that has no native
// cancellation API.
var cancelDeadline = time.Unix(1, 0)

// connStream adapts a net.Conn to the broker.Stream interface,
// providing independent CancelRead/CancelWrite via deadlines.
type connStream struct {
	net.Conn

	sendTimeout    time.Duration
	receiveTimeout time.Duration
}

func newConnStream(c net.Conn, sendTimeout, receiveTimeout time.Duration) *connStream {
	return &connStream{Conn: c, sendTimeout: sendTimeout, receiveTimeout: receiveTimeout}
}

func (s *connStream) Read(p []byte) (int, error) {
	if s.receiveTimeout > 0 {
		_ = s.Conn.SetReadDeadline(time.Now().Add(s.receiveTimeout))
	}
	return s.Conn.Read(p)
}

func (s *connStream) Write(p []byte) (int, error) {
	if s.sendTimeout > 0 {
		_ = s.Conn.SetWriteDeadline(time.Now().Add(s.sendTimeout))
	}
	return s.Conn.Write(p)
}

func (s *connStream) CancelRead() {
	_ = s.Conn.SetReadDeadline(cancelDeadline)
}

func (s *connStream) CancelWrite() {
	_ = s.Conn.SetWriteDeadline(cancelDeadline)
}
