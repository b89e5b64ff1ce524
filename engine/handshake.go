package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPDoer performs the one-shot handshake request. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HandshakeError is returned when the server answers the handshake with a non-success status.
type HandshakeError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HandshakeError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("handshake: HTTP status code %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("handshake: HTTP status code %d", e.StatusCode)
}

// maximum handshake body accepted; a v1 response is a single short line
const maxHandshakeBody = 4096

// Handshake requests a new session from host:port and returns the negotiated Parameters.
func Handshake(ctx context.Context, doer HTTPDoer, rawurl string, requestHeader http.Header) (param Parameters, err error) {
	if doer == nil {
		doer = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return
	}
	for k, vv := range requestHeader {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	resp, err := doer.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHandshakeBody))
	if err != nil {
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = &HandshakeError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
		return
	}
	param = ParseParameters(string(body))
	if !param.SupportsWebsocket() {
		err = ErrWebsocketUnsupported
	}
	return
}
