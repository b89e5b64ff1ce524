package socketio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	var cases = []struct {
		uri         string
		defaultPort int
		want        Target
	}{
		{"example.com:80/chat", 0, Target{Host: "example.com", Port: 80, Path: "chat"}},
		{"http://example.com:8080/chat", 0, Target{Host: "example.com", Port: 8080, Path: "chat"}},
		{"ws://example.com:80/news", 0, Target{Host: "example.com", Port: 80, Path: "news"}},
		{"https://example.com:443/chat", 0, Target{Host: "example.com", Port: 443, Path: "chat", Secure: true}},
		{"wss://example.com:443", 0, Target{Host: "example.com", Port: 443, Path: RootEndpoint, Secure: true}},
		{"example.com:80", 0, Target{Host: "example.com", Port: 80, Path: RootEndpoint}},
		{"example.com:80/", 0, Target{Host: "example.com", Port: 80, Path: RootEndpoint}},
		{"example.com", 3000, Target{Host: "example.com", Port: 3000, Path: RootEndpoint}},
		{"//example.com/chat", 80, Target{Host: "example.com", Port: 80, Path: "chat"}},
		{"example.com:80/chat?token=1", 0, Target{Host: "example.com", Port: 80, Path: "chat"}},
		{"example.com:80/?token=1", 0, Target{Host: "example.com", Port: 80, Path: RootEndpoint}},
		{"127.0.0.1:9000/a/b", 0, Target{Host: "127.0.0.1", Port: 9000, Path: "a/b"}},
		{"example.com:80/path//with://colons", 0, Target{Host: "example.com", Port: 80, Path: "path//with://colons"}},
		{"[::1]:8080/chat", 0, Target{Host: "::1", Port: 8080, Path: "chat"}},
		{"ws://[::1]", 80, Target{Host: "::1", Port: 80, Path: RootEndpoint}},
		{"wss://[fe80::1]:443/a", 0, Target{Host: "fe80::1", Port: 443, Path: "a", Secure: true}},
	}
	for _, c := range cases {
		got, err := ParseURI(c.uri, c.defaultPort)
		if assert.NoError(t, err, c.uri) {
			assert.Equal(t, c.want, got, c.uri)
		}
	}
}

func TestParseURIErrors(t *testing.T) {
	var cases = []struct {
		uri  string
		want error
	}{
		{"example.com/chat", ErrMissingPort},
		{"http://example.com", ErrMissingPort},
		{"example.com:http", ErrInvalidURI},
		{"example.com:0", ErrInvalidURI},
		{"example.com:65536", ErrInvalidURI},
		{":80/chat", ErrInvalidURI},
		{"http://:80", ErrInvalidURI},
		{"[::1", ErrInvalidURI},
		{"[::1]x/chat", ErrInvalidURI},
		{"[::1]:", ErrInvalidURI},
		{"[]:80", ErrInvalidURI},
		{"[::1]/chat", ErrMissingPort},
	}
	for _, c := range cases {
		_, err := ParseURI(c.uri, 0)
		assert.ErrorIs(t, err, c.want, c.uri)
	}
}

func TestTargetKey(t *testing.T) {
	a, err := ParseURI("http://example.com:80/chat", 0)
	require.NoError(t, err)
	b, err := ParseURI("example.com:80/news", 0)
	require.NoError(t, err)
	assert.Equal(t, "example.com:80", a.Key())
	assert.Equal(t, a.Key(), b.Key())

	v6, err := ParseURI("[::1]:80", 0)
	require.NoError(t, err)
	assert.Equal(t, "[::1]:80", v6.Key())
}
