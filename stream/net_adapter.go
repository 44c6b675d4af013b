// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"net"
	"time"

	"github.com/nilsbloom/httpbroker/broker"
)

// streamToConn adapts a broker.Stream to net.Conn so crypto/tls (which
// only speaks net.Conn) can wrap it. Address and deadline methods are
// stubs: a Stream cancels I/O via CancelRead/CancelWrite rather than
// deadlines, so there is nothing meaningful for SetDeadline to do
// here. tlsStream routes cancellation around the TLS layer to the
// underlying Stream for the same reason.
type streamToConn struct {
	broker.Stream
}

func (streamToConn) LocalAddr() net.Addr                { return noAddr{} }
func (streamToConn) RemoteAddr() net.Addr                { return noAddr{} }
func (streamToConn) SetDeadline(time.Time) error          { return nil }
func (streamToConn) SetReadDeadline(time.Time) error      { return nil }
func (streamToConn) SetWriteDeadline(time.Time) error     { return nil }

type noAddr struct{}

func (noAddr) Network() string { return "stream" }
func (noAddr) String() string  { return "stream" }
