// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package broker

import (
	"errors"
)

// A Kind classifies a broker Error for the purposes of retry and
// surfacing decisions. See Retryable for how Kind interacts with
// retry policy.
type Kind int

const (
	// Aborted indicates a broker or operation was cancelled, either by
	// an explicit CancelPending/CloseConnections call or because the
	// broker had already latched a cancelled state from a previous
	// call.
	Aborted Kind = iota
	// SocketError indicates a name resolution failure, connect
	// failure, or I/O error on an established socket. Retryable by
	// BaseRequestBroker.
	SocketError
	// PriorRequestFailed indicates this request shared a pipelined
	// connection with an earlier request that failed before this
	// request's bytes ever reached the wire. Retryable by
	// BaseRequestBroker.
	PriorRequestFailed
	// TLSError indicates a handshake or certificate verification
	// failure. Not retried.
	TLSError
	// HTTPProtocolError indicates malformed framing or unexpected peer
	// behavior on an otherwise live connection. Not retried.
	HTTPProtocolError
	// CircularRedirect indicates a redirect loop was detected. Terminal.
	CircularRedirect
	// OperationTimedOut indicates a configured connect/send/receive
	// timeout elapsed. Treated exactly like SocketError for retry
	// purposes; the distinct Kind exists so callers can tell the two
	// apart when reporting.
	OperationTimedOut
)

//go:generate stringer -type=Kind

func (k Kind) String() string {
	switch k {
	case Aborted:
		return "Aborted"
	case SocketError:
		return "SocketError"
	case PriorRequestFailed:
		return "PriorRequestFailed"
	case TLSError:
		return "TLSError"
	case HTTPProtocolError:
		return "HTTPProtocolError"
	case CircularRedirect:
		return "CircularRedirect"
	case OperationTimedOut:
		return "OperationTimedOut"
	default:
		return "Unknown"
	}
}

// An Error is a classified broker error. It wraps an underlying cause
// (which may itself be nil for purely synthetic errors such as
// CircularRedirect) so callers can use errors.As/errors.Is against the
// original cause while also switching on Kind.
type Error struct {
	Kind  Kind
	Op    string // the broker operation that failed, e.g. "stream.GetStream", "connpool.GetConnection"
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError constructs a classified Error.
func NewError(op string, kind Kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Cause: cause}
}

// Retryable reports whether err is a broker Error whose Kind
// BaseRequestBroker treats as safe to retry regardless of method
// idempotence: SocketError (including OperationTimedOut, its timeout
// flavor) and PriorRequestFailed. These classes are unambiguously
// connection-level, and in every case no bytes of the new request
// attempt have yet been transmitted successfully.
func Retryable(err error) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	return be.Kind == SocketError || be.Kind == OperationTimedOut || be.Kind == PriorRequestFailed
}

// IsAborted reports whether err is a broker Error of Kind Aborted.
func IsAborted(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == Aborted
}

// Classify inspects a raw error from the networking layer (address
// resolution, socket connect, socket I/O) and returns the SocketError
// or OperationTimedOut classification that applies to it. It never
// returns Aborted; callers that distinguish a cancellation from an
// ordinary socket failure must check that case themselves before
// calling Classify.
//
// Classify walks wrapped causes with errors.As, looking for a
// Timeout() bool method (the convention net.Error and friends use);
// any other non-nil err is a SocketError.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var hasTimeout interface{ Timeout() bool }
	if errors.As(err, &hasTimeout) && hasTimeout.Timeout() {
		return NewError(op, OperationTimedOut, err)
	}

	return NewError(op, SocketError, err)
}
