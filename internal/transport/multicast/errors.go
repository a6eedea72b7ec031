package multicast

import (
	"errors"

	"github.com/vovakirdan/conclave/internal/proto"
)

// Error kinds. Use errors.Is against these to classify a transport failure.
var (
	ErrInvalidAddress = errors.New("invalid multicast address")
	ErrUnsupported    = errors.New("unsupported address family")
	ErrSocket         = errors.New("socket setup failed")
	ErrJoin           = errors.New("join multicast group failed")
	ErrSend           = errors.New("send failed")
	ErrReceive        = errors.New("receive failed")
	// ErrDecode is shared with the wire codec so either package's sentinel
	// matches a malformed datagram.
	ErrDecode = proto.ErrDecode
)

// Error is a classified transport failure. It matches both its Kind and
// the underlying cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Kind.Error()
	case errors.Is(e.Err, e.Kind):
		return e.Err.Error()
	default:
		return e.Kind.Error() + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func wrapErr(kind, err error) error {
	return &Error{Kind: kind, Err: err}
}
