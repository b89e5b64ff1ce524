package engine

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// Dialer dials to remote server and returns a connection instance
type Dialer interface {
	Dial(ctx context.Context, rawurl string, requestHeader http.Header) (conn Conn, err error)
}

// DialerFunc is a Dialer func
type DialerFunc func(ctx context.Context, rawurl string, requestHeader http.Header) (Conn, error)

// Dial implements Dialer interface
func (f DialerFunc) Dial(ctx context.Context, rawurl string, requestHeader http.Header) (Conn, error) {
	return f(ctx, rawurl, requestHeader)
}

// Conn is abstraction of a bidirectional text-frame connection.
// ReadMessage returns io.EOF once the peer closed the connection normally.
// WriteMessage is not required to be safe for concurrent use; Emitter serializes writes.
type Conn interface {
	FrameReader
	FrameWriter
	io.Closer
}

// FrameReader reads one text frame from remote
type FrameReader interface {
	ReadMessage() (frame string, err error)
}

// FrameWriter sends one text frame to remote
type FrameWriter interface {
	WriteMessage(frame string) error
}

var (
	// ErrWebsocketUnsupported indicates that the server did not offer the websocket transport
	ErrWebsocketUnsupported = errors.New("websocket transport not offered by server")
	// ErrBinaryFrame indicates that a binary frame was received; socket.io v1 is text only
	ErrBinaryFrame = errors.New("unexpected binary frame")
	// ErrEmitterClosed indicates a write was submitted after the emitter shut down
	ErrEmitterClosed = errors.New("emitter closed")
	// ErrQueueFull indicates a frame was dropped because the outbound queue was full
	ErrQueueFull = errors.New("emitter queue full")
)
