package socketio

import (
	"net"
	"strconv"
	"strings"
)

// RootEndpoint is the path of the default endpoint
const RootEndpoint = "/"

// Target is a parsed connection uri
type Target struct {
	Host   string
	Port   int
	Path   string // endpoint path, RootEndpoint for the default endpoint
	Secure bool
}

// Key returns the "host:port" identity sessions are registered under; IPv6 hosts are bracketed
func (t Target) Key() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ParseURI parses `[scheme://]host[:port][/path]`. A missing port falls back to
// defaultPort; with defaultPort 0 that is ErrMissingPort. The endpoint path is the
// uri path without its leading slash ("/chat" → "chat"); an empty path is RootEndpoint.
func ParseURI(uri string, defaultPort int) (t Target, err error) {
	rest := strings.TrimSpace(uri)
	if i := strings.Index(rest, "://"); i >= 0 && !strings.Contains(rest[:i], "/") {
		switch strings.ToLower(rest[:i]) {
		case "https", "wss":
			t.Secure = true
		}
		rest = rest[i+3:]
	} else {
		rest = strings.TrimPrefix(rest, "//")
	}

	hostport := rest
	t.Path = RootEndpoint
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		hostport = rest[:i]
		if p := rest[i+1:]; p != "" {
			t.Path = p
		}
	}
	if j := strings.IndexAny(t.Path, "?#"); j >= 0 {
		t.Path = t.Path[:j]
		if t.Path == "" {
			t.Path = RootEndpoint
		}
	}

	host, port, hasPort, ok := splitHostPort(hostport)
	if !ok {
		return Target{}, ErrInvalidURI
	}
	t.Host = host
	if hasPort {
		if t.Port, err = strconv.Atoi(port); err != nil || t.Port <= 0 || t.Port > 65535 {
			return Target{}, ErrInvalidURI
		}
	} else {
		if defaultPort == 0 {
			return Target{}, ErrMissingPort
		}
		t.Port = defaultPort
	}
	if t.Host == "" {
		return Target{}, ErrInvalidURI
	}
	return
}

// splitHostPort splits `host[:port]`, where host may be a bracketed IPv6 literal
func splitHostPort(hostport string) (host, port string, hasPort, ok bool) {
	if strings.HasPrefix(hostport, "[") {
		end := strings.IndexByte(hostport, ']')
		if end < 0 {
			return
		}
		h, rest := hostport[1:end], hostport[end+1:]
		switch {
		case rest == "":
			return h, "", false, true
		case rest[0] == ':':
			return h, rest[1:], true, true
		}
		return
	}
	if i := strings.LastIndexByte(hostport, ':'); i >= 0 {
		return hostport[:i], hostport[i+1:], true, true
	}
	return hostport, "", false, true
}
