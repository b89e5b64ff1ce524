package socketio

import (
	"sync"

	"github.com/rs/zerolog"
)

// Client is one endpoint multiplexed over a Session
type Client struct {
	host string
	port int
	path string

	session  *Session
	delegate Delegate
	*eventHandlers
	logger zerolog.Logger

	mu        sync.Mutex
	connected bool
	released  bool
}

func newClient(t Target, s *Session, delegate Delegate) *Client {
	return &Client{
		host:          t.Host,
		port:          t.Port,
		path:          t.Path,
		session:       s,
		delegate:      delegate,
		eventHandlers: newEventHandlers(),
		logger:        s.logger.With().Str("endpoint", t.Path).Logger(),
	}
}

// Host returns the remote host
func (c *Client) Host() string { return c.host }

// Port returns the remote port
func (c *Client) Port() int { return c.port }

// Path returns the endpoint path, RootEndpoint for the default endpoint
func (c *Client) Path() string { return c.path }

// Session returns the session carrying this endpoint
func (c *Client) Session() *Session { return c.session }

// Connected reports whether the server acknowledged this endpoint
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send sends a plain message. Before the endpoint is connected the delegate
// receives ErrNotConnected and nothing is written.
func (c *Client) Send(data string) error {
	if !c.Connected() {
		c.delegate.OnError(c, ErrNotConnected)
		return ErrNotConnected
	}
	return c.session.send(NewMessagePacket(c.path, data))
}

// Emit sends event name with args, which must already be encoded JSON.
// Before the endpoint is connected the delegate receives ErrNotConnected and nothing is written.
func (c *Client) Emit(event, args string) error {
	if !c.Connected() {
		c.delegate.OnError(c, ErrNotConnected)
		return ErrNotConnected
	}
	return c.session.emit(c.path, event, args)
}

// Disconnect leaves the endpoint. The delegate's OnClose runs once; later calls do nothing.
func (c *Client) Disconnect() {
	if !c.release() {
		return
	}
	c.session.disconnectEndpoint(c.path)
	c.delegate.OnClose(c)
}

// release marks the client disconnected for good; false if it already was
func (c *Client) release() bool {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return false
	}
	c.released = true
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()
	if wasConnected {
		c.session.metrics.activeEndpoints.Dec()
	}
	return true
}

func (c *Client) onOpen() {
	if c.path != RootEndpoint {
		if err := c.session.connectEndpoint(c.path); err != nil {
			c.logger.Warn().Err(err).Msg("connect endpoint")
		}
	}
}

func (c *Client) onConnect() {
	c.mu.Lock()
	if c.released || c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = true
	c.mu.Unlock()
	c.session.metrics.activeEndpoints.Inc()
	c.logger.Info().Msg("connected to endpoint")
	c.delegate.OnConnect(c)
}

func (c *Client) onMessage(data string) {
	if c.isReleased() {
		return
	}
	c.delegate.OnMessage(c, data)
}

func (c *Client) receivedDisconnect() {
	if !c.release() {
		return
	}
	c.delegate.OnClose(c)
}

func (c *Client) fireEvent(event, args string) {
	c.logger.Debug().Str("event", event).Str("args", args).Msg("fire event")
	if !c.fire(c, event, args) {
		c.logger.Debug().Str("event", event).Msg("no event handler")
	}
}

func (c *Client) notifyError(err error) {
	if c.isReleased() {
		return
	}
	c.delegate.OnError(c, err)
}

func (c *Client) isReleased() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}
