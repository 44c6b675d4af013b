// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package reqbroker

// WithMaxRetries caps at n the number of broker.SocketError/
// broker.PriorRequestFailed retries a BaseRequestBroker performs within
// a single Request call before giving up and surfacing the last error.
// Without a cap, a peer that kills every connection after accept keeps
// the retry loop running forever. n must be positive; a cap of zero
// (the BaseRequestBroker zero value) means unlimited.
//
// Pass this to NewBaseRequestBroker:
//
//	base := reqbroker.NewBaseRequestBroker(cache, handlers, reqbroker.WithMaxRetries(5))
func WithMaxRetries(n int) Option {
	return func(b *BaseRequestBroker) {
		b.maxRetries = n
	}
}
