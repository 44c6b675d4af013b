// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"context"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilsbloom/httpbroker/broker"
)

func TestSocketStreamBrokerDialSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			_ = conn.Close()
		}
	}()

	b := NewSocketStreamBroker(SocketOptions{})
	u, _ := url.Parse("http://" + ln.Addr().String())
	s, err := b.GetStream(u)
	require.NoError(t, err)
	require.NotNil(t, s)
	_ = s.Close()
}

func TestSocketStreamBrokerDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	b := NewSocketStreamBroker(SocketOptions{})
	u, _ := url.Parse("http://" + addr)
	_, err = b.GetStream(u)
	assert.Error(t, err)
	var be *broker.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, broker.SocketError, be.Kind)
}

func TestSocketStreamBrokerCancelPending(t *testing.T) {
	b := NewSocketStreamBroker(SocketOptions{})
	b.CancelPending()

	u, _ := url.Parse("http://127.0.0.1:1")
	_, err := b.GetStream(u)
	assert.True(t, broker.IsAborted(err))
}

func TestSocketStreamBrokerCancelDuringDial(t *testing.T) {
	// A non-routable address (per RFC 5737 TEST-NET-1) that will hang
	// rather than immediately refuse, so CancelPending has something to
	// interrupt.
	b := NewSocketStreamBroker(SocketOptions{})
	u, _ := url.Parse("http://192.0.2.1:81")

	done := make(chan error, 1)
	go func() {
		_, err := b.GetStream(u)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	b.CancelPending()

	select {
	case err := <-done:
		assert.True(t, broker.IsAborted(err) || err != nil)
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not unblock dial")
	}
}

func TestHostPortForScheme(t *testing.T) {
	https, _ := url.Parse("https://example.com/")
	assert.Equal(t, "example.com:443", hostPortForScheme(https))

	http_, _ := url.Parse("http://example.com/")
	assert.Equal(t, "example.com:80", hostPortForScheme(http_))

	explicit, _ := url.Parse("http://example.com:8080/")
	assert.Equal(t, "example.com:8080", hostPortForScheme(explicit))
}

func TestDialOneRespectsContext(t *testing.T) {
	// Sanity check that the broker's Dialer honours an already
	// cancelled context, the mechanism dialOne's CancelPending
	// bookkeeping relies on to interrupt a connect.
	b := NewSocketStreamBroker(SocketOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Dialer.DialContext(ctx, "tcp", "127.0.0.1:1")
	assert.Error(t, err)
}
