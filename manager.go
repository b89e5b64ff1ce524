package socketio

import (
	"fmt"
	"sync"
)

// Manager is the entry point for opening endpoints. It owns the Registry of
// sessions, so every endpoint connected through one Manager to the same
// host:port shares one websocket.
type Manager struct {
	registry *Registry
	opts     options
	metrics  *metrics
	mu       sync.Mutex
}

// NewManager creates a Manager with an empty Registry
func NewManager(opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{
		registry: NewRegistry(),
		opts:     o,
		metrics:  newMetrics(o.registerer),
	}
}

// Registry returns the sessions registry of m
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Connect opens the endpoint named by uri (`[scheme://]host[:port][/path]`).
// An endpoint already registered on the destination's session is returned as is,
// keeping its first delegate. The returned Client is usable once the
// delegate's OnConnect runs; connection failures are reported through OnError.
func (m *Manager) Connect(uri string, delegate Delegate) (*Client, error) {
	t, err := ParseURI(uri, m.opts.defaultPort)
	if err != nil {
		return nil, fmt.Errorf("socketio: connect %q: %w", uri, err)
	}
	if delegate == nil {
		delegate = DelegateFuncs{}
	}

	m.mu.Lock()
	if ß, ok := m.registry.Find(t.Key()); ok {
		c, created, open, err := ß.attach(t.Path, func() *Client { return newClient(t, ß, delegate) })
		if err == nil {
			m.mu.Unlock()
			if created && open {
				if err = ß.connectEndpoint(t.Path); err != nil {
					ß.logger.Warn().Err(err).Str("endpoint", t.Path).Msg("connect endpoint")
				}
			}
			return c, nil
		}
		// the session is going away; replace it
	}
	ß := newSession(t, m.registry, &m.opts, m.metrics)
	c, _, _, _ := ß.attach(t.Path, func() *Client { return newClient(t, ß, delegate) })
	m.registry.Insert(t.Key(), ß)
	m.mu.Unlock()

	ß.start()
	return c, nil
}

// Close disconnects every session and waits for them to finish
func (m *Manager) Close() error {
	ß := m.registry.sessions()
	for _, s := range ß {
		s.disconnect()
	}
	for _, s := range ß {
		<-s.Done()
	}
	return nil
}
