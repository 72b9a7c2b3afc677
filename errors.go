package mediasession

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Factory.Accept and Session.Run wraps
// exactly one of them and can be tested with errors.Is.
var (
	// ErrNegotiation is a malformed or unacceptable offer. No session exists.
	ErrNegotiation = errors.New("mediasession: negotiation failed")
	// ErrConfiguration is a setup problem, like having no usable local address.
	ErrConfiguration = errors.New("mediasession: configuration error")
	// ErrTransport is a socket failure other than a read timeout.
	ErrTransport = errors.New("mediasession: transport error")
	// ErrEncoding is a compressor failure.
	ErrEncoding = errors.New("mediasession: encoding error")
	// ErrProtocol is a failure the engine reports after setup.
	ErrProtocol = errors.New("mediasession: protocol error")
)

// Error is a failure of one operation.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}
