// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package wire implements the ClientConnection/ClientRequest pair, a
framed HTTP/1.x client bound to a stream, plus a ServerConnection used
only by the brokertest package's mock dispatcher.

The broker layers above treat HTTP/1.x framing as an opaque
collaborator, so this package satisfies that contract the
straightforward way: by handing framing to net/http's own
*http.Request.Write and http.ReadResponse, the same codec net/http's
Transport uses internally. Everything above this package (the
connection cache, the request brokers) only ever sees the
ClientConnection/ClientRequest interfaces from package broker.
*/
package wire
