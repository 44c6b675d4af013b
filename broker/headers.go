// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package broker

import (
	"context"
	"errors"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
)

// RequestLine is the method and target URI of an HTTP request attempt,
// the part of Headers that RequestBroker filters rewrite in place as a
// request moves through proxy selection and redirect following.
type RequestLine struct {
	Method string
	URI    *url.URL
}

// Headers is the outbound request state passed to RequestBroker.Request:
// everything needed to dispatch one logical HTTP request attempt,
// independent of which ClientConnection ends up carrying it.
//
// Headers is mutated in place by filter brokers (BaseRequestBroker sets
// Host; RedirectRequestBroker rewrites RequestLine.URI across hops), so
// a Headers value should not be shared between concurrent logical
// requests.
type Headers struct {
	RequestLine RequestLine
	Header      http.Header
	Body        []byte

	// originalURI is captured once, the first time CaptureOriginalURI is
	// called for this logical request, and restored by
	// RestoreOriginalURI. It anchors RedirectRequestBroker's final
	// restoration (and its 301 rebase), independent of any per-attempt
	// local save/restore BaseRequestBroker does around a single dial.
	originalURI *url.URL

	// visited is RedirectRequestBroker's per-request visited-URI chain,
	// living on Headers because a Headers value is already documented
	// as never shared between concurrent logical requests.
	visited []*url.URL

	ctx context.Context
}

// NewHeaders builds Headers for method and uri. The body parameter may
// be nil, a string, a []byte, an io.Reader, or an io.ReadCloser,
// following the same conversion rules as BodyBytes.
func NewHeaders(ctx context.Context, method string, uri *url.URL, body interface{}) (*Headers, error) {
	if ctx == nil {
		return nil, errors.New("broker: nil context")
	}
	b, err := BodyBytes(body)
	if err != nil {
		return nil, err
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Headers{
		RequestLine: RequestLine{Method: method, URI: uri},
		Header:      make(http.Header),
		Body:        b,
		ctx:         ctx,
	}, nil
}

// Context returns the context governing the overall request, including
// all retries and redirect hops.
func (h *Headers) Context() context.Context {
	if h.ctx == nil {
		return context.Background()
	}
	return h.ctx
}

// HasBody reports whether the request carries a non-empty body.
func (h *Headers) HasBody() bool {
	return len(h.Body) > 0
}

// ToRequest converts Headers into a *http.Request bound to ctx, so the
// lower broker layers can speak in terms of the standard library's
// request type when it is convenient (for example when delegating
// framing to net/http's wire codec).
func (h *Headers) ToRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if len(h.Body) > 0 {
		body = ioutil.NopCloser(newByteReader(h.Body))
	}
	req, err := http.NewRequestWithContext(ctx, h.RequestLine.Method, h.RequestLine.URI.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range h.Header {
		if k == "Host" {
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	// net/http writes req.Host as the request-line target of a CONNECT,
	// so for CONNECT the Host header (which names the proxy) is not
	// copied into it and the request line keeps RequestLine.URI's
	// authority.
	if host := h.Header.Get("Host"); host != "" && h.RequestLine.Method != http.MethodConnect {
		req.Host = host
	}
	if len(h.Body) > 0 {
		req.ContentLength = int64(len(h.Body))
	}
	return req, nil
}

// CaptureOriginalURI records the URI in effect when a dispatch attempt
// begins. RestoreOriginalURI puts it back, unconditionally, on every
// exit path: callers wrap a retry loop in CaptureOriginalURI/
// RestoreOriginalURI via defer instead of repeating the restore
// statement on every branch.
func (h *Headers) CaptureOriginalURI() {
	if h.originalURI == nil {
		u := *h.RequestLine.URI
		h.originalURI = &u
	}
}

// RestoreOriginalURI restores RequestLine.URI to the value captured by
// CaptureOriginalURI (or the value most recently rebased by
// RebaseOriginalURI), if any.
func (h *Headers) RestoreOriginalURI() {
	if h.originalURI != nil {
		h.RequestLine.URI = h.originalURI
	}
}

// OriginalURI returns the URI captured by CaptureOriginalURI, or nil if
// CaptureOriginalURI has not been called.
func (h *Headers) OriginalURI() *url.URL {
	return h.originalURI
}

// RebaseOriginalURI permanently moves the anchor used by
// RestoreOriginalURI, used by RedirectRequestBroker on a 301 response
// to anchor further redirects (and the URI the caller observes) at the
// new permanent location.
func (h *Headers) RebaseOriginalURI(uri *url.URL) {
	h.originalURI = uri
}

// VisitURI appends uri to the visited-URI chain and reports whether it
// had already been visited (exact value equality). The first URI a
// logical request targets should be recorded via VisitURI before any
// redirect is followed, so a later hop back to the start is also
// caught.
func (h *Headers) VisitURI(uri *url.URL) (alreadyVisited bool) {
	for _, v := range h.visited {
		if SameURI(v, uri) {
			return true
		}
	}
	u := *uri
	h.visited = append(h.visited, &u)
	return false
}

// VisitedURIs returns the visited-URI chain recorded so far via
// VisitURI.
func (h *Headers) VisitedURIs() []*url.URL {
	return h.visited
}

// ResetVisitedURIs clears the visited-URI chain. RedirectRequestBroker
// calls it on entry so the chain spans a single logical dispatch: a
// URI visited during an earlier dispatch of the same Headers is not a
// redirect loop in this one.
func (h *Headers) ResetVisitedURIs() {
	h.visited = nil
}

const badBodyTypeMsg = "broker: invalid body type (use nil, string, []byte, io.Reader or io.ReadCloser)"

// BodyBytes converts a generic body parameter to a byte slice for use
// as request Headers' Body.
func BodyBytes(body interface{}) ([]byte, error) {
	switch x := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	case io.ReadCloser:
		b, err := ioutil.ReadAll(x)
		if err != nil {
			return nil, err
		}
		if err = x.Close(); err != nil {
			return nil, err
		}
		return b, nil
	case io.Reader:
		return BodyBytes(ioutil.NopCloser(x))
	default:
		return nil, errors.New(badBodyTypeMsg)
	}
}

type byteReader struct {
	b []byte
	i int
}

func newByteReader(b []byte) *byteReader {
	return &byteReader{b: b}
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}
