// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package connpool implements ConnectionCache, the pooling
broker.ConnectionBroker that sits between the proxy/redirect layers
above and a broker.StreamBroker below.

Each origin (scheme + authority) owns an ordered list of slots, each
either pending (a dial in flight) or ready (a live ClientConnection).
A single mutex and per-origin condition variable, both obtained from a
fiber.Scheduler, guard every mutation; GetConnection's selection,
dial, and wait logic all run under that lock except for the two
suspension points the design calls out explicitly: Cond.Wait and the
call into the underlying StreamBroker.
*/
package connpool
