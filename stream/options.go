// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"crypto/tls"
	"time"
)

// Infinite is the zero value for a SocketOptions timeout field,
// meaning no timeout is applied.
const Infinite time.Duration = 0

// SocketOptions configures SocketStreamBroker. The zero value
// disables all three timeouts: SocketStreamBroker has no inherent
// opinion about timing the way http.Transport does, so the default is
// simply "no timeout."
type SocketOptions struct {
	// ConnectTimeout bounds a single address's connect attempt.
	ConnectTimeout time.Duration
	// SendTimeout bounds each Write on the resulting Stream.
	SendTimeout time.Duration
	// ReceiveTimeout bounds each Read on the resulting Stream.
	ReceiveTimeout time.Duration
}

// SSLOptions configures SSLStreamBroker.
type SSLOptions struct {
	// VerifyCertificate, if true, validates the peer certificate chain
	// against the system (or TLSConfig's) root pool.
	VerifyCertificate bool
	// VerifyHost, if true, validates the peer certificate's subject
	// against the URI's host.
	VerifyHost bool
	// TLSConfig is cloned and adapted (ServerName, InsecureSkipVerify)
	// for each handshake. A nil TLSConfig is equivalent to &tls.Config{}.
	TLSConfig *tls.Config
}
