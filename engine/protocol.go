package engine

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Parameters describes socket.io v1 session attributes, sent by the server as the handshake response body.
type Parameters struct {
	SID              string
	HeartbeatTimeout int // seconds
	CloseTimeout     int // seconds
	Transports       []string
}

// ParseParameters decodes a `sid:heartbeat:close[:transports]` handshake body.
// Missing or malformed numeric fields are left as 0.
func ParseParameters(body string) Parameters {
	var param Parameters
	fields := strings.SplitN(strings.TrimSpace(body), ":", 4)
	param.SID = fields[0]
	if len(fields) > 1 {
		param.HeartbeatTimeout = atoi(fields[1])
	}
	if len(fields) > 2 {
		param.CloseTimeout = atoi(fields[2])
	}
	if len(fields) > 3 && fields[3] != "" {
		param.Transports = strings.Split(fields[3], ",")
	}
	return param
}

// SupportsWebsocket reports whether the server offered the websocket transport.
// An empty transport list is taken as no restriction.
func (p Parameters) SupportsWebsocket() bool {
	if len(p.Transports) == 0 {
		return true
	}
	for _, t := range p.Transports {
		if strings.TrimSpace(t) == TransportWebsocket {
			return true
		}
	}
	return false
}

// HeartbeatInterval returns the period heartbeats are sent at: 90% of the server heartbeat timeout.
func (p Parameters) HeartbeatInterval() time.Duration {
	return time.Duration(float64(p.HeartbeatTimeout) * 0.9 * float64(time.Second))
}

// atoi parses leading decimal digits, like C atoi without sign handling.
func atoi(s string) int {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0
	}
	return n
}

const (
	// Version is socket.io-protocol version
	Version = "1"

	// TransportWebsocket is the only transport this package speaks
	TransportWebsocket = "websocket"

	defaultPathname = "/socket.io/"
)

// HandshakeURL returns the handshake endpoint for host:port.
func HandshakeURL(host string, port int, secure bool) string {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	return scheme + "://" + hostport(host, port) + defaultPathname + Version
}

// WebsocketURL returns the websocket endpoint of session sid on host:port.
func WebsocketURL(host string, port int, secure bool, sid string) string {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	return scheme + "://" + hostport(host, port) + defaultPathname + Version + "/" + TransportWebsocket + "/" + sid
}

func hostport(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
