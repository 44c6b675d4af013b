// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package fiber abstracts the cooperative scheduler the broker chain
runs on: many logical tasks multiplexed over one worker pool, with
mutex/condition-variable primitives that yield to the scheduler
instead of blocking an OS thread.

Go's runtime already schedules goroutines that way: acquiring a
contended sync.Mutex or waiting on a sync.Cond parks the goroutine and
lets the runtime run others on the same small pool of OS threads. The
Scheduler interface in this package exists so ConnectionCache and the
stream brokers depend on an abstraction rather than on sync directly,
while Default provides the idiomatic Go answer: a Scheduler backed by
goroutines and the standard sync primitives.
*/
package fiber
