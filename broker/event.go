// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package broker

import "net/url"

// An Event identifies the event type when installing or running a
// Handler in a HandlerGroup. The broker chain has no logging dependency
// of its own; instead it fires these typed events so a caller can wire
// in whatever logger or metrics sink it likes.
type Event int

const (
	// DialStart identifies the event fired by a ConnectionBroker just
	// before it delegates to its StreamBroker to establish a fresh
	// connection.
	DialStart Event = iota
	// DialSucceeded identifies the event fired after a dial completes
	// successfully and the new slot has been published as ready.
	DialSucceeded
	// DialFailed identifies the event fired after a dial fails and the
	// reserved pending slot has been removed.
	DialFailed
	// ConnectionReused identifies the event fired when GetConnection
	// returns an existing ready connection instead of dialing.
	ConnectionReused
	// ConnectionEvicted identifies the event fired when the cache's
	// sweep removes a slot because its connection no longer accepts new
	// requests.
	ConnectionEvicted
	// RequestRetried identifies the event fired by BaseRequestBroker
	// when a SocketError or PriorRequestFailed causes it to re-enter
	// connection selection.
	RequestRetried
	// RedirectFollowed identifies the event fired by
	// RedirectRequestBroker once it has accepted a redirect and
	// rewritten the request-line URI, just before it re-dispatches to
	// the new location.
	RedirectFollowed
	// PoolClosed identifies the event fired once per CloseConnections
	// call, after every pooled connection has been cancelled and the
	// pool state cleared.
	PoolClosed

	eventSentinel
	numEvents = int(eventSentinel)
)

var eventNames = [...]string{
	"DialStart",
	"DialSucceeded",
	"DialFailed",
	"ConnectionReused",
	"ConnectionEvicted",
	"RequestRetried",
	"RedirectFollowed",
	"PoolClosed",
}

// Name returns the name of the event.
func (evt Event) Name() string {
	if int(evt) < 0 || int(evt) >= len(eventNames) {
		return "Unknown"
	}
	return eventNames[evt]
}

func (evt Event) String() string {
	return evt.Name()
}

// Info carries the event-specific context passed to a Handler. Not
// every field is populated for every Event; see the comment on each
// field below for which events set it.
type Info struct {
	// Event is the event that occurred.
	Event Event
	// URI is set for every event except PoolClosed: the URI passed to
	// GetConnection for DialStart, DialSucceeded, DialFailed, and
	// ConnectionReused; the origin key of the swept entry for
	// ConnectionEvicted; the URI being dialed for RequestRetried; and
	// the redirect target for RedirectFollowed.
	URI *url.URL
	// Err is the error that occurred, set for DialFailed and
	// RequestRetried.
	Err error
	// Redirects is the full chain of visited URIs so far, set for
	// RedirectFollowed so a logging handler can render the whole hop
	// chain.
	Redirects []*url.URL
}
