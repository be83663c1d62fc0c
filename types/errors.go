package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures crossing a layer boundary
type ErrorKind int

const (
	// KindTransport covers spawn failures, descriptor errors and unexpected process exit.
	// The session must be reconnected.
	KindTransport ErrorKind = iota + 1

	// KindTimeout means a pattern was not observed within the deadline
	KindTimeout

	// KindProtocol means a reply was present but malformed
	KindProtocol

	// KindReplyFailure means the device explicitly rejected the request
	KindReplyFailure

	// KindPrecondition means the request was rejected before any device I/O
	KindPrecondition
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol"
	case KindReplyFailure:
		return "reply-failure"
	case KindPrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// Sentinels usable with errors.Is
var (
	ErrTransport    = &Error{Kind: KindTransport}
	ErrTimeout      = &Error{Kind: KindTimeout}
	ErrProtocol     = &Error{Kind: KindProtocol}
	ErrReplyFailure = &Error{Kind: KindReplyFailure}
	ErrPrecondition = &Error{Kind: KindPrecondition}

	// ErrUnsupported is returned by hooks a vendor does not implement
	ErrUnsupported = &Error{Kind: KindPrecondition, Diagnostic: "operation not supported by this switch"}

	// ErrNotConnected is returned when a session is used before Connect
	ErrNotConnected = &Error{Kind: KindPrecondition, Diagnostic: "not connected to switch"}
)

// Error is the typed failure returned by every layer
type Error struct {
	Kind       ErrorKind
	Op         string
	Switch     string
	Diagnostic string
	Err        error
}

// NewError builds an Error of the given kind
func NewError(kind ErrorKind, op, diagnostic string, err error) *Error {
	return &Error{Kind: kind, Op: op, Diagnostic: diagnostic, Err: err}
}

// Errorf builds an Error with a formatted diagnostic
func Errorf(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Diagnostic: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Switch != "" {
		msg = e.Switch + ": " + msg
	}
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so that errors.Is(err, ErrTimeout) works for any timeout
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Diagnostic != "" && t.Diagnostic != e.Diagnostic {
		return false
	}
	return t.Kind == e.Kind
}

// WithSwitch returns a copy of err tagged with the switch name.
// Errors that are not an *Error at the top level are returned unchanged.
func WithSwitch(err error, name string) error {
	e, ok := err.(*Error) //nolint:errorlint // only the outermost error is tagged
	if !ok || e.Switch != "" || name == "" {
		return err
	}
	c := *e
	c.Switch = name
	return &c
}

// KindOf returns the kind of err, or zero when err carries none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Diagnostic returns the device diagnostic carried by err, if any
func Diagnostic(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Diagnostic
	}
	return ""
}

// IsRecoverable returns true if the whole transaction can be retried
// on the same session
func IsRecoverable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindProtocol, KindReplyFailure:
		return true
	default:
		return false
	}
}

// NeedsReconnect returns true if the session is unusable after err
func NeedsReconnect(err error) bool {
	return KindOf(err) == KindTransport
}
