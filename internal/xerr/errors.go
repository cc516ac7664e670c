// Package xerr declares the sentinel errors for the error taxonomy:
// recoverable, session-fatal, and process-fatal conditions, distinguished
// with errors.Is at the handling site rather than a bespoke error type
// hierarchy — no error-handling library appears anywhere in the corpus
// this system is grounded on, so none is introduced here.
package xerr

import "errors"

var (
	// ErrWireProtocol covers bad framing, an unknown msg_type, or a
	// sequence gap on an inbound session. The session is closed; the
	// process keeps running.
	ErrWireProtocol = errors.New("wire protocol error")

	// ErrResourceExhausted covers a full pool or a full queue. The
	// triggering request is rejected; a publish is dropped and counted.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrBookInvariant marks a detected book invariant violation. In
	// debug builds callers are expected to panic instead of returning
	// this; release builds log it and reject the offending request.
	ErrBookInvariant = errors.New("book invariant violated")

	// ErrUnknownTicker is returned when a request names a ticker the
	// exchange has no matching engine for.
	ErrUnknownTicker = errors.New("unknown ticker")

	// ErrSessionClosed is returned by session I/O after the session has
	// been torn down, so callers stop scheduling further work on it.
	ErrSessionClosed = errors.New("session closed")
)
