// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package stream implements the two bottom-most StreamBroker variants:
SocketStreamBroker dials a plain TCP socket, and SSLStreamBroker is a
StreamBrokerFilter that upgrades its parent's Stream to TLS when the
target URI's scheme is https.
*/
package stream
