package session

import "errors"

var (
	// ErrSessionClosed is returned by sends after the session has closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrTransportClosed is returned by a Transport whose connection is gone.
	ErrTransportClosed = errors.New("transport closed")

	// ErrTooManySessions is returned by Registry.Accept at the call limit.
	ErrTooManySessions = errors.New("too many concurrent sessions")

	// ErrCallTimeout is returned by Run when the call exceeded its time limit.
	ErrCallTimeout = errors.New("call timeout exceeded")

	// ErrUnexpectedEnd reports a provider stream that ended without its end marker.
	ErrUnexpectedEnd = errors.New("stream ended without end marker")
)
