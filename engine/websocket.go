package engine

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketDialer is the default Dialer, backed by gorilla/websocket
var WebsocketDialer Dialer = &websocketDialer{}

// NewWebsocketDialer returns a Dialer using d for the websocket upgrade.
// writeTimeout bounds each frame write; zero means no deadline.
func NewWebsocketDialer(d *websocket.Dialer, writeTimeout time.Duration) Dialer {
	return &websocketDialer{dialer: d, writeTimeout: writeTimeout}
}

type websocketDialer struct {
	dialer       *websocket.Dialer
	writeTimeout time.Duration
}

func (t *websocketDialer) Dial(ctx context.Context, rawurl string, requestHeader http.Header) (Conn, error) {
	dialer := t.dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	c, resp, err := dialer.DialContext(ctx, rawurl, requestHeader)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &websocketConn{conn: c, writeTimeout: t.writeTimeout}, nil
}

type websocketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (w *websocketConn) ReadMessage() (string, error) {
	msgType, b, err := w.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return "", io.EOF
		}
		return "", err
	}
	if msgType != websocket.TextMessage {
		return "", ErrBinaryFrame
	}
	return string(b), nil
}

func (w *websocketConn) WriteMessage(frame string) error {
	if w.writeTimeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			return err
		}
	}
	return w.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// Close sends a close frame when possible and closes the underlying connection.
func (w *websocketConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}
