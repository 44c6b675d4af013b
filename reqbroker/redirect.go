// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package reqbroker

import (
	"net/http"
	"net/url"

	"github.com/nilsbloom/httpbroker/broker"
)

// RedirectRequestBroker implements broker.RequestBrokerFilter. It
// follows 301/302/307 responses by re-dispatching through its parent
// with a rewritten request-line URI, up to the point a URI repeats
// (broker.CircularRedirect) or the request carries a body that cannot
// be safely replayed.
type RedirectRequestBroker struct {
	parent   broker.RequestBroker
	handlers *broker.HandlerGroup
}

// NewRedirectRequestBroker returns a RedirectRequestBroker delegating
// to parent. parent may be nil and set later with SetParent.
func NewRedirectRequestBroker(parent broker.RequestBroker, handlers *broker.HandlerGroup) *RedirectRequestBroker {
	return &RedirectRequestBroker{parent: parent, handlers: handlers}
}

// Parent implements broker.RequestBrokerFilter.
func (rb *RedirectRequestBroker) Parent() broker.RequestBroker { return rb.parent }

// SetParent implements broker.RequestBrokerFilter.
func (rb *RedirectRequestBroker) SetParent(p broker.RequestBroker) { rb.parent = p }

// Request implements broker.RequestBroker.
func (rb *RedirectRequestBroker) Request(headers *broker.Headers, forceNew bool) (broker.ClientRequest, error) {
	headers.CaptureOriginalURI()
	defer headers.RestoreOriginalURI()

	headers.ResetVisitedURIs()
	headers.VisitURI(headers.RequestLine.URI)

	for {
		req, err := rb.parent.Request(headers, forceNew)
		if err != nil {
			return nil, err
		}
		redispatch, err := rb.CheckResponse(headers, req)
		if err != nil {
			return nil, err
		}
		if !redispatch {
			return req, nil
		}
	}
}

// CheckResponse implements broker.RequestBrokerFilter. It blocks on
// req's response, and if the status is a redirect this broker is
// willing to follow, rewrites headers.RequestLine.URI to the
// Location-resolved target, finishes req, and reports redispatch=true.
func (rb *RedirectRequestBroker) CheckResponse(headers *broker.Headers, req broker.ClientRequest) (bool, error) {
	if req.HasRequestBody() {
		// Bodies may be one-shot streams; this layer cannot safely
		// replay them, so the caller decides whether to redirect.
		return false, nil
	}

	resp, err := req.Response()
	if err != nil {
		return false, err
	}

	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusTemporaryRedirect:
	default:
		return false, nil
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return false, nil
	}

	newURI, err := broker.ResolveReference(headers.RequestLine.URI, loc)
	if err != nil {
		return false, err
	}

	if alreadyVisited := headers.VisitURI(newURI); alreadyVisited {
		return false, broker.NewError("reqbroker.Redirect", broker.CircularRedirect, nil)
	}

	if err := req.Finish(); err != nil {
		return false, err
	}

	headers.RequestLine.URI = newURI
	if resp.StatusCode == http.StatusMovedPermanently {
		// Anchor further redirects (and the URI the caller ultimately
		// observes) at the new permanent location.
		headers.RebaseOriginalURI(newURI)
	}

	rb.handlers.Run(broker.Info{
		Event:     broker.RedirectFollowed,
		URI:       newURI,
		Redirects: append([]*url.URL(nil), headers.VisitedURIs()...),
	})

	return true, nil
}
