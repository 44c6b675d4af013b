// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package broker

import "net/url"

// OriginKey reduces uri to scheme and authority (host plus optional
// port), the connection pool's primary key. Path, query, and fragment
// are cleared. The returned URI is always a fresh copy; the argument is
// never mutated.
func OriginKey(uri *url.URL) *url.URL {
	return &url.URL{
		Scheme: uri.Scheme,
		Host:   uri.Host,
	}
}

// SameOrigin reports whether a and b share a scheme and authority.
func SameOrigin(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Host == b.Host
}

// SameURI reports whether a and b are exactly equal, the membership
// test RedirectRequestBroker's visited set uses.
func SameURI(a, b *url.URL) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// StripAuthority returns a copy of uri with Scheme, Opaque, and Host
// cleared, producing the origin-form request-line URI BaseRequestBroker
// uses for a direct (non-proxied) connection.
func StripAuthority(uri *url.URL) *url.URL {
	u := *uri
	u.Scheme = ""
	u.Opaque = ""
	u.Host = ""
	u.User = nil
	return &u
}

// RestoreAuthority returns a copy of uri with Scheme and Host taken
// from original, producing the absolute-form request-line URI
// BaseRequestBroker uses when the chosen connection is proxied.
func RestoreAuthority(uri, original *url.URL) *url.URL {
	u := *uri
	u.Scheme = original.Scheme
	u.Host = original.Host
	return &u
}

// HasAuthority reports whether uri carries a non-empty authority
// (Host), the test BaseRequestBroker uses to decide whether a
// request-line URI needs stripping or restoring for a given connection.
func HasAuthority(uri *url.URL) bool {
	return uri.Host != ""
}

// ResolveReference resolves the Location header value ref against base,
// the step RedirectRequestBroker performs to compute the redirect
// target. It is a thin wrapper over url.URL.Parse/ResolveReference so
// the redirect broker never has to import net/url itself just for this.
func ResolveReference(base *url.URL, ref string) (*url.URL, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(refURL), nil
}
