// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package reqbroker provides the RequestBroker variants:
BaseRequestBroker, which dispatches through a ConnectionBroker and
retries the connection-level error classes, and RedirectRequestBroker,
a filter that follows 301/302/307 responses.

BaseRequestBroker performs the request-line rewriting a proxy-aware
chain requires (origin-form for a direct connection, absolute-form for
a proxied one) and restores the URI around dispatch: the caller's
broker.Headers.RequestLine.URI is always back to its pre-dispatch
value by the time Request returns, on every exit path.

The core BaseRequestBroker retry loop is intentionally uncapped; a
caller that talks to an adversarial peer should construct it with
WithMaxRetries to impose an upper bound.
*/
package reqbroker
