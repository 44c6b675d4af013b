// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"net"
)

// pipeStream adapts one end of a net.Pipe to broker.Stream for tests.
// Cancellation just closes the underlying pipe half, which is enough
// fidelity for these tests since none of them exercise cancellation
// mid-read; package stream's connStream is the real CancelRead/
// CancelWrite implementation used in production.
type pipeStream struct {
	net.Conn
}

func (p pipeStream) CancelRead()  { _ = p.Conn.Close() }
func (p pipeStream) CancelWrite() { _ = p.Conn.Close() }

func newPipeStreams() (pipeStream, pipeStream) {
	a, b := net.Pipe()
	return pipeStream{a}, pipeStream{b}
}
