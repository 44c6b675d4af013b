// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package proxy provides the proxy-aware ConnectionBroker and
StreamBroker layers.

ConnectionBroker consults a Resolver to pick zero or more candidate
proxy URIs for a request's origin and delegates to an inner
broker.ConnectionBroker per candidate (or directly for the origin
itself, if the resolver returns none).

StreamBroker is the TLS-through-proxy half: for a URI that needs
tunneling, it issues a CONNECT through a supplied broker.RequestBroker
and hands the raw post-CONNECT Stream to its caller (expected to be
stream.SSLStreamBroker performing the TLS handshake over the tunnel).
The CONNECT-issuing RequestBroker itself ends at a StreamBroker, so
the reference is a cycle: StreamBroker is constructed with a nil
RequestBroker and SetRequestBroker is called once the inner chain
exists.
*/
package proxy
