// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package netdial provides the address-lookup and socket-factory
collaborators behind SocketStreamBroker, keeping name resolution and
socket syscalls swappable for tests. Resolver and Dialer are the
interfaces SocketStreamBroker depends on; DefaultResolver and
DefaultDialer wire them to the standard library's net.Resolver and
net.Dialer.
*/
package netdial
