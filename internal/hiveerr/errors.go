// Package hiveerr defines the closed set of error kinds surfaced by the
// hive core. Every handler and RPC call classifies its failures into one
// of these kinds so callers and the dispatcher can apply the right
// retry/log/surface policy without inspecting error strings.
package hiveerr

import "errors"

// Kind classifies an error for dispatcher and RPC handling purposes.
type Kind int

const (
	// KindCapacity: a row cap was exceeded. Surfaced to caller; no retry.
	KindCapacity Kind = iota
	// KindValidation: payload schema, profile, or range violation. Drop
	// message, log at warn.
	KindValidation
	// KindSignature: missing, malformed, or pubkey-mismatched signature.
	// Drop message (fail-closed).
	KindSignature
	// KindAuthorization: tier or schema pattern refused. Surfaced to
	// caller.
	KindAuthorization
	// KindUnavailable: circuit open, signing adapter down, transport
	// queue full.
	KindUnavailable
	// KindTransient: storage retryable error. Retry with bounded
	// backoff.
	KindTransient
	// KindFatal: invariant violation. Abort the handler, log at error.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindCapacity:
		return "capacity"
	case KindValidation:
		return "validation"
	case KindSignature:
		return "signature"
	case KindAuthorization:
		return "authorization"
	case KindUnavailable:
		return "unavailable"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a classification kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + ": " + e.Op
	}
	return e.Kind.String() + ": " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or anything it wraps) is a hiveerr.Error of the
// given kind.
func Is(err error, kind Kind) bool {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind == kind
	}
	return false
}

func Capacity(op string, err error) error     { return New(KindCapacity, op, err) }
func Validation(op string, err error) error   { return New(KindValidation, op, err) }
func Signature(op string, err error) error    { return New(KindSignature, op, err) }
func Authorization(op string, err error) error { return New(KindAuthorization, op, err) }
func Unavailable(op string, err error) error  { return New(KindUnavailable, op, err) }
func Transient(op string, err error) error    { return New(KindTransient, op, err) }
func Fatal(op string, err error) error        { return New(KindFatal, op, err) }
