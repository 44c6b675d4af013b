// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net/url"

	"github.com/nilsbloom/httpbroker/broker"
)

// SSLStreamBroker is a broker.StreamBrokerFilter: for an https URI, it
// wraps its parent's Stream in a TLS client connection and performs
// the handshake; for any other scheme, it returns the parent's Stream
// unchanged. Handshake and verification failures surface as
// broker.TLSError and are never retried at this layer.
type SSLStreamBroker struct {
	Options SSLOptions

	parent broker.StreamBroker
}

// NewSSLStreamBroker constructs an SSLStreamBroker delegating to
// parent. parent may be nil and set later with SetParent, which is how
// the SSL-through-proxy construction cycle gets resolved: the filter
// is reparented onto the proxy StreamBroker once that exists.
func NewSSLStreamBroker(parent broker.StreamBroker, opts SSLOptions) *SSLStreamBroker {
	return &SSLStreamBroker{Options: opts, parent: parent}
}

// Parent implements broker.StreamBrokerFilter.
func (b *SSLStreamBroker) Parent() broker.StreamBroker { return b.parent }

// SetParent implements broker.StreamBrokerFilter.
func (b *SSLStreamBroker) SetParent(p broker.StreamBroker) { b.parent = p }

// GetStream implements broker.StreamBroker.
func (b *SSLStreamBroker) GetStream(uri *url.URL) (broker.Stream, error) {
	underlying, err := b.parent.GetStream(uri)
	if err != nil {
		return nil, err
	}
	if uri.Scheme != "https" {
		return underlying, nil
	}

	cfg := b.Options.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{}
	} else {
		cfg = cfg.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = uri.Hostname()
	}
	// crypto/tls bundles chain and hostname verification, so the two
	// toggles are independent only with its standard verification
	// disabled and the requested half reinstated via
	// VerifyPeerCertificate.
	switch {
	case b.Options.VerifyCertificate && b.Options.VerifyHost:
		// Standard verification covers both.
	case b.Options.VerifyCertificate:
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = chainOnlyVerifier(cfg.RootCAs)
	case b.Options.VerifyHost:
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = hostOnlyVerifier(cfg.ServerName)
	default:
		cfg.InsecureSkipVerify = true
	}

	tlsConn := tls.Client(&streamToConn{Stream: underlying}, cfg)
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		_ = underlying.Close()
		return nil, broker.NewError("stream.GetStream", broker.TLSError, err)
	}
	return &tlsStream{conn: tlsConn, under: underlying}, nil
}

// CancelPending implements broker.StreamBroker by delegating to the
// parent; the TLS layer itself has no independent notion of a pending
// set, since the handshake runs over an already-established Stream.
func (b *SSLStreamBroker) CancelPending() {
	b.parent.CancelPending()
}

// chainOnlyVerifier validates the peer certificate chain against roots
// (nil means the system pool) without checking the leaf against any
// hostname.
func chainOnlyVerifier(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		certs := make([]*x509.Certificate, len(rawCerts))
		for i, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return err
			}
			certs[i] = cert
		}
		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range certs[1:] {
			opts.Intermediates.AddCert(cert)
		}
		_, err := certs[0].Verify(opts)
		return err
	}
}

// hostOnlyVerifier checks the peer's leaf certificate against host
// without requiring the chain to be trusted.
func hostOnlyVerifier(host string) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		cert, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return err
		}
		return cert.VerifyHostname(host)
	}
}

// tlsStream is the Stream returned for an https URI. Reads and writes
// go through the TLS record layer; CancelRead/CancelWrite bypass it
// and cancel the underlying Stream, which fails the blocked TLS
// operation from below.
type tlsStream struct {
	conn  *tls.Conn
	under broker.Stream
}

func (s *tlsStream) Read(p []byte) (int, error)  { return s.conn.Read(p) }
func (s *tlsStream) Write(p []byte) (int, error) { return s.conn.Write(p) }
func (s *tlsStream) CancelRead()                 { s.under.CancelRead() }
func (s *tlsStream) CancelWrite()                { s.under.CancelWrite() }
func (s *tlsStream) Close() error                { return s.conn.Close() }
