// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"context"
	"net"
	"net/url"
	"sync"

	"github.com/nilsbloom/httpbroker/broker"
	"github.com/nilsbloom/httpbroker/netdial"
)

// SocketStreamBroker is the bottom of every StreamBroker chain: it
// resolves a URI's host[:port] to one or more addresses and connects
// to them in order until one succeeds.
type SocketStreamBroker struct {
	Resolver netdial.Resolver
	Dialer   netdial.Dialer
	Options  SocketOptions

	mu        sync.Mutex
	cancelled bool
	pending   map[*pendingDial]struct{}
}

type pendingDial struct {
	cancel context.CancelFunc
}

// NewSocketStreamBroker constructs a SocketStreamBroker using the
// standard library's resolver and dialer (netdial.DefaultResolver,
// netdial.DefaultDialer) unless overridden on the returned value.
func NewSocketStreamBroker(opts SocketOptions) *SocketStreamBroker {
	return &SocketStreamBroker{
		Resolver: netdial.DefaultResolver,
		Dialer:   netdial.DefaultDialer,
		Options:  opts,
		pending:  make(map[*pendingDial]struct{}),
	}
}

// GetStream implements broker.StreamBroker.
func (b *SocketStreamBroker) GetStream(uri *url.URL) (broker.Stream, error) {
	b.mu.Lock()
	if b.cancelled {
		b.mu.Unlock()
		return nil, broker.NewError("stream.GetStream", broker.Aborted, nil)
	}
	b.mu.Unlock()

	hostport := hostPortForScheme(uri)

	addrs, err := b.Resolver.LookupAddrs(context.Background(), "tcp", hostport)
	if err != nil {
		return nil, broker.Classify("stream.GetStream", err)
	}
	if len(addrs) == 0 {
		return nil, broker.NewError("stream.GetStream", broker.SocketError, errNoAddresses)
	}

	var lastErr error
	for _, addr := range addrs {
		conn, err := b.dialOne(addr)
		if err != nil {
			lastErr = err
			continue
		}
		return newConnStream(conn, b.Options.SendTimeout, b.Options.ReceiveTimeout), nil
	}
	return nil, lastErr
}

func (b *SocketStreamBroker) dialOne(addr string) (net.Conn, error) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if b.Options.ConnectTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, b.Options.ConnectTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	pd := &pendingDial{cancel: cancel}

	b.mu.Lock()
	if b.cancelled {
		b.mu.Unlock()
		return nil, broker.NewError("stream.GetStream", broker.Aborted, nil)
	}
	b.pending[pd] = struct{}{}
	b.mu.Unlock()

	conn, err := b.Dialer.DialContext(ctx, "tcp", addr)

	b.mu.Lock()
	delete(b.pending, pd)
	b.mu.Unlock()

	if err != nil {
		if ctx.Err() == context.Canceled {
			return nil, broker.NewError("stream.GetStream", broker.Aborted, err)
		}
		return nil, broker.Classify("stream.GetStream", err)
	}
	return conn, nil
}

// CancelPending implements broker.StreamBroker.
func (b *SocketStreamBroker) CancelPending() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled = true
	for pd := range b.pending {
		pd.cancel()
	}
}

func hostPortForScheme(uri *url.URL) string {
	if uri.Port() != "" {
		return uri.Host
	}
	switch uri.Scheme {
	case "https":
		return net.JoinHostPort(uri.Hostname(), "443")
	case "http", "":
		return net.JoinHostPort(uri.Hostname(), "80")
	default:
		return net.JoinHostPort(uri.Hostname(), uri.Scheme)
	}
}

var errNoAddresses = errNoAddressesType{}

type errNoAddressesType struct{}

func (errNoAddressesType) Error() string { return "stream: host resolved to no addresses" }
