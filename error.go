package socketio

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPacket indicates an empty frame
	ErrInvalidPacket = errors.New("invalid packet")
	// ErrNotConnected indicates a send on an endpoint the server has not acknowledged
	ErrNotConnected = errors.New("client not yet connected")
	// ErrMissingPort indicates a uri without port while no default port is set
	ErrMissingPort = errors.New("uri has no port and no default port is configured")
	// ErrInvalidURI indicates a uri with an empty host or a malformed port
	ErrInvalidURI = errors.New("invalid uri")
	// ErrSessionClosed indicates the session is no longer open
	ErrSessionClosed = errors.New("session closed")
)

// HandshakeFailedError is delivered to every endpoint of a destination whose handshake failed
type HandshakeFailedError struct {
	Host string
	Port int
	Err  error
}

func (e *HandshakeFailedError) Error() string {
	return fmt.Sprintf("socket.io handshake with %s:%d failed: %v", e.Host, e.Port, e.Err)
}

func (e *HandshakeFailedError) Unwrap() error { return e.Err }

// TransportError wraps a websocket-level failure
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "socket.io transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is the reason carried by an Error packet from the server
type RemoteError string

func (e RemoteError) Error() string { return string(e) }
