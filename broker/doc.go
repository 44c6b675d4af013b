// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package broker defines the shared data model and interfaces that tie
together the layers of an HTTP client request broker: a StreamBroker
turns a URI into a byte Stream, a ConnectionBroker turns a URI into a
ClientConnection, and a RequestBroker turns a set of request Headers
into an in-flight ClientRequest.

The concrete broker variants (socket dialing, TLS upgrade, proxying,
connection pooling, redirect following, request dispatch) live in
sibling packages (stream, connpool, proxy, reqbroker, wire) and depend
on the types in this package, not on each other, so the chain can be
assembled and reassembled at construction time without import cycles.
*/
package broker
