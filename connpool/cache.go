// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package connpool

import (
	"net/url"

	"github.com/nilsbloom/httpbroker/broker"
	"github.com/nilsbloom/httpbroker/fiber"
	"github.com/nilsbloom/httpbroker/wire"
)

// DefaultConnectionsPerHost is used when Options.ConnectionsPerHost is
// zero or negative.
const DefaultConnectionsPerHost = 6

// Options configures a ConnectionCache.
type Options struct {
	// ConnectionsPerHost bounds concurrent connections (ready or
	// pending) per origin. Defaults to DefaultConnectionsPerHost.
	// Note that the pool grows to this bound before any reuse occurs,
	// so a value of 1 serializes dials to each origin.
	ConnectionsPerHost int
	// CloseOnShutdown records the owner's intent to call
	// CloseConnections when it tears the cache down. ConnectionCache
	// installs no finalizer of its own; a Go value has no destructor
	// to hook, so the owner performs the call.
	CloseOnShutdown bool
	// Handlers receives DialStart, DialSucceeded, DialFailed,
	// ConnectionReused, ConnectionEvicted, and PoolClosed events. A nil
	// Handlers is a safe no-op, matching broker.HandlerGroup's zero
	// value. Handlers may be invoked while cache internals hold the
	// pool mutex and must not call back into the ConnectionCache.
	Handlers *broker.HandlerGroup
}

// slot is one unit of pool capacity for an origin. A nil conn means
// the slot is pending: a dial is in flight and has not yet published
// a connection or been removed on failure.
type slot struct {
	conn broker.ClientConnection
}

func (s *slot) ready() bool {
	return s.conn != nil
}

// entry is the per-origin pool state: an ordered list of slots plus
// the condition variable waiters block on while a dial is in flight.
type entry struct {
	slots []*slot
	cond  fiber.Cond
}

// ConnectionCache implements broker.ConnectionBroker with reuse,
// bounded dial fan-out per origin, and least-loaded selection among
// ready connections. It is the pooling layer every concrete
// StreamBroker chain sits behind.
type ConnectionCache struct {
	scheduler fiber.Scheduler
	stream    broker.StreamBroker
	perHost   int
	handlers  *broker.HandlerGroup

	// newConn builds a ClientConnection over a freshly dialed stream.
	// It defaults to wire.NewClientConnection; tests substitute a
	// fake so dial identity and outstanding-request counts can be
	// observed directly instead of through real HTTP/1.x framing.
	newConn func(broker.Stream) broker.ClientConnection

	mu      fiber.Mutex
	entries map[string]*entry
	closed  bool
}

// NewConnectionCache returns a ConnectionCache dialing through stream,
// using scheduler for its mutex and condition variables.
func NewConnectionCache(scheduler fiber.Scheduler, stream broker.StreamBroker, opts Options) *ConnectionCache {
	perHost := opts.ConnectionsPerHost
	if perHost <= 0 {
		perHost = DefaultConnectionsPerHost
	}
	return &ConnectionCache{
		scheduler: scheduler,
		stream:    stream,
		perHost:   perHost,
		handlers:  opts.Handlers,
		mu:        scheduler.NewMutex(),
		entries:   make(map[string]*entry),
		newConn: func(s broker.Stream) broker.ClientConnection {
			return wire.NewClientConnection(s)
		},
	}
}

// GetConnection implements broker.ConnectionBroker. It never reports
// viaProxy=true; that distinction is introduced by proxy.ConnectionBroker,
// which wraps a ConnectionCache per chosen proxy/direct origin.
func (c *ConnectionCache) GetConnection(uri *url.URL, forceNew bool) (broker.ClientConnection, bool, error) {
	key := broker.OriginKey(uri).String()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, false, broker.NewError("connpool.GetConnection", broker.Aborted, nil)
	}
	c.sweepAll()

	if !forceNew {
		for {
			e, ok := c.entries[key]
			if !ok || len(e.slots) < c.perHost {
				break
			}
			best, isPending := leastLoaded(e.slots)
			if !isPending {
				conn := best.conn
				c.mu.Unlock()
				c.handlers.Run(broker.Info{Event: broker.ConnectionReused, URI: uri})
				return conn, false, nil
			}
			e.cond.Wait()
			if c.closed {
				c.mu.Unlock()
				return nil, false, broker.NewError("connpool.GetConnection", broker.Aborted, nil)
			}
			c.sweep(key)
		}
	}

	e, ok := c.entries[key]
	if !ok {
		e = &entry{cond: c.scheduler.NewCond(c.mu)}
		c.entries[key] = e
	}
	s := &slot{}
	e.slots = append(e.slots, s)
	c.mu.Unlock()

	c.handlers.Run(broker.Info{Event: broker.DialStart, URI: uri})
	stream, err := c.stream.GetStream(uri)

	c.mu.Lock()
	if err != nil {
		c.removePending(key, s)
		c.mu.Unlock()
		c.handlers.Run(broker.Info{Event: broker.DialFailed, URI: uri, Err: err})
		return nil, false, err
	}
	if c.closed {
		// CloseConnections cleared the pool while the dial was in
		// flight and the dial won the race anyway.
		c.mu.Unlock()
		_ = stream.Close()
		return nil, false, broker.NewError("connpool.GetConnection", broker.Aborted, nil)
	}
	conn := c.newConn(stream)
	s.conn = conn
	e.cond.Broadcast()
	c.mu.Unlock()
	c.handlers.Run(broker.Info{Event: broker.DialSucceeded, URI: uri})
	return conn, false, nil
}

// CloseConnections implements broker.ConnectionBroker. It cancels
// pending dials at the StreamBroker, wakes every waiter, cancels I/O
// on every pooled connection, and clears the pool; once closed, every
// subsequent GetConnection fails with Kind Aborted.
func (c *ConnectionCache) CloseConnections() {
	c.stream.CancelPending()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, e := range c.entries {
		e.cond.Broadcast()
		for _, s := range e.slots {
			if s.ready() {
				s.conn.Stream().CancelRead()
				s.conn.Stream().CancelWrite()
			}
		}
	}
	c.entries = make(map[string]*entry)
	c.handlers.Run(broker.Info{Event: broker.PoolClosed})
}

// Sweep removes every dead slot from every origin in the pool, the
// same hygiene pass GetConnection performs on entry. A caller (or a
// periodic task spawned via the fiber.Scheduler) can invoke Sweep
// proactively, in the manner of net/http's CloseIdleConnections.
func (c *ConnectionCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepAll()
}

// sweepAll sweeps every origin in the pool. Called under c.mu at the
// top of every GetConnection, which amortizes pool hygiene onto the
// caller path with no background task.
func (c *ConnectionCache) sweepAll() {
	for key := range c.entries {
		c.sweep(key)
	}
}

// sweep removes slots under key whose connection no longer accepts
// new requests, and deletes the entry entirely if it becomes empty.
func (c *ConnectionCache) sweep(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	live := e.slots[:0]
	for _, s := range e.slots {
		if s.ready() && !s.conn.NewRequestsAllowed() {
			origin, _ := url.Parse(key)
			c.handlers.Run(broker.Info{Event: broker.ConnectionEvicted, URI: origin})
			continue
		}
		live = append(live, s)
	}
	e.slots = live
	if len(e.slots) == 0 {
		delete(c.entries, key)
	}
}

// removePending deletes the single pending slot matching s from the
// entry at key, broadcasts, and erases the entry if it is now empty.
// Exactly one pending slot is removed per failed dial.
func (c *ConnectionCache) removePending(key string, s *slot) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	for i, candidate := range e.slots {
		if candidate == s {
			e.slots = append(e.slots[:i], e.slots[i+1:]...)
			break
		}
	}
	e.cond.Broadcast()
	if len(e.slots) == 0 {
		delete(c.entries, key)
	}
}

// leastLoaded returns the slot with the fewest outstanding requests
// among s, ties broken by list order. A pending slot sorts as
// greater-than-any ready slot, so it is only ever returned when every
// slot in s is pending.
func leastLoaded(s []*slot) (best *slot, isPending bool) {
	best = s[0]
	for _, cand := range s[1:] {
		if better(cand, best) {
			best = cand
		}
	}
	return best, !best.ready()
}

func better(cand, best *slot) bool {
	if cand.ready() != best.ready() {
		return cand.ready()
	}
	if !cand.ready() {
		return false
	}
	return cand.conn.OutstandingRequests() < best.conn.OutstandingRequests()
}
