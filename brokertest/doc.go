// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package brokertest provides MockConnectionBroker, a test
collaborator: a broker.ConnectionBroker backed by an in-memory
bidirectional pipe (net.Pipe) instead of a real socket, with a
caller-supplied Dispatch function playing the role of the origin
server.

Because both pipe ends run the real wire framing, a test that drives a
request broker through MockConnectionBroker exercises the same
serialization and pipelining paths a live socket would, without a
listener.
*/
package brokertest
