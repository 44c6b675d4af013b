// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package httpbroker provides the default broker chain wiring: a
RequestBroker/ConnectionBroker pair assembled from this module's
leaf packages, ready to dispatch HTTP requests over pooled,
transparently reused connections with redirect following, proxy
tunneling, and connection-level retry.

The pieces are independently usable and independently testable:

  - broker defines the interfaces (StreamBroker, ConnectionBroker,
    RequestBroker), the shared Headers/Error/Event types, and URI
    helpers every other package builds on.
  - netdial and stream provide the socket and TLS StreamBroker
    variants.
  - connpool provides ConnectionCache, the bounded-fan-out pooling
    layer.
  - wire provides the HTTP/1.x ClientConnection/ServerConnection
    framing over a broker.Stream.
  - reqbroker provides BaseRequestBroker and RedirectRequestBroker.
  - proxy provides the proxy-aware ConnectionBroker and StreamBroker.
  - brokertest provides MockConnectionBroker for tests that want a
    dispatch function instead of a real socket.

Call DefaultRequestBroker to get the canonical pipeline:

	rb, cache := httpbroker.DefaultRequestBroker(fiber.Default(), httpbroker.Options{})
	defer cache.CloseConnections()

	headers, _ := broker.NewHeaders(ctx, "GET", uri, nil)
	req, err := rb.Request(headers, false)
	...
	resp, err := req.Response()
	...
	req.Finish()
*/
package httpbroker
