package socketio

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/zyxar/socketio1/engine"
)

// SessionState is the lifecycle state of a Session
type SessionState int

const (
	StateIdle SessionState = iota
	StateHandshake
	StateOpening
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

// String returns string representation of a SessionState
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshake:
		return "handshake"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "invalid"
}

// Session owns the websocket connection to one host:port and multiplexes
// every endpoint Client of that destination over it.
type Session struct {
	target   Target
	key      string
	opts     *options
	registry *Registry
	metrics  *metrics
	tracer   trace.Tracer
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu            sync.Mutex
	state         SessionState
	param         engine.Parameters
	conn          engine.Conn
	emitter       *engine.Emitter
	stopHeartbeat func()
	counted       bool
	clients       map[string]*Client
}

func newSession(t Target, registry *Registry, opts *options, m *metrics) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		target:   t,
		key:      t.Key(),
		opts:     opts,
		registry: registry,
		metrics:  m,
		tracer:   opts.tracer(),
		logger:   opts.logger.With().Str("session", t.Key()).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		clients:  make(map[string]*Client),
	}
}

// Key returns the "host:port" the session is registered under
func (s *Session) Key() string { return s.key }

// Host returns the remote host
func (s *Session) Host() string { return s.target.Host }

// Port returns the remote port
func (s *Session) Port() int { return s.target.Port }

// Sid returns socket session id, assigned by server during handshake.
func (s *Session) Sid() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.param.SID
}

// Parameters returns the handshake parameters; zero before the handshake completes.
// CloseTimeout is recorded only, no timeout is enforced from it.
func (s *Session) Parameters() engine.Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.param
}

// State returns the current lifecycle state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the transport is open
func (s *Session) Connected() bool {
	return s.State() == StateOpen
}

// Endpoints returns the paths of the registered clients, sorted
func (s *Session) Endpoints() []string {
	s.mu.Lock()
	paths := make([]string, 0, len(s.clients))
	for p := range s.clients {
		paths = append(paths, p)
	}
	s.mu.Unlock()
	sort.Strings(paths)
	return paths
}

// Done is closed once the session goroutines have all returned
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) start() {
	s.mu.Lock()
	s.state = StateHandshake
	s.mu.Unlock()
	go s.run()
}

func (s *Session) run() {
	defer close(s.done)
	param, err := s.handshake()
	if err != nil {
		s.fail(&HandshakeFailedError{Host: s.target.Host, Port: s.target.Port, Err: err})
		return
	}

	s.mu.Lock()
	if s.state != StateHandshake {
		s.mu.Unlock()
		return
	}
	s.param = param
	s.state = StateOpening
	s.mu.Unlock()

	conn, err := s.dial(param.SID)
	if err != nil {
		s.metrics.transportErrors.Inc()
		s.fail(&TransportError{Err: err})
		return
	}
	s.serve(conn)
}

func (s *Session) handshake() (param engine.Parameters, err error) {
	ctx, span := s.tracer.Start(s.ctx, "socketio.handshake",
		trace.WithAttributes(attribute.String("socketio.session", s.key)))
	defer span.End()

	s.logger.Debug().Msg("handshake")
	param, err = engine.Handshake(ctx, s.opts.httpClient,
		engine.HandshakeURL(s.target.Host, s.target.Port, s.target.Secure), s.opts.header)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.handshakes.WithLabelValues("error").Inc()
		return
	}
	span.SetAttributes(
		attribute.String("socketio.sid", param.SID),
		attribute.Int("socketio.heartbeat_timeout", param.HeartbeatTimeout),
		attribute.Int("socketio.close_timeout", param.CloseTimeout),
	)
	s.metrics.handshakes.WithLabelValues("ok").Inc()
	s.logger.Info().
		Str("sid", param.SID).
		Int("heartbeat", param.HeartbeatTimeout).
		Int("timeout", param.CloseTimeout).
		Msg("handshake succeeded")
	return
}

func (s *Session) dial(sid string) (engine.Conn, error) {
	rawurl := engine.WebsocketURL(s.target.Host, s.target.Port, s.target.Secure, sid)
	ctx, span := s.tracer.Start(s.ctx, "socketio.dial",
		trace.WithAttributes(attribute.String("socketio.url", rawurl)))
	defer span.End()

	conn, err := s.opts.dialer.Dial(ctx, rawurl, s.opts.header)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return conn, nil
}

// fail moves a session that never opened into its terminal state.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state == StateClosing || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	clients := s.snapshot()
	s.mu.Unlock()

	s.registry.removeSession(s.key, s)
	s.logger.Error().Err(err).Msg("session failed")
	for _, c := range clients {
		c.notifyError(err)
	}
	s.cancel()
}

func (s *Session) serve(conn engine.Conn) {
	em := engine.NewEmitter(conn, s.opts.queueSize)

	s.mu.Lock()
	if s.state != StateOpening {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.emitter = em
	s.state = StateOpen
	s.counted = true
	clients := s.snapshot()
	s.mu.Unlock()

	grp, ctx := errgroup.WithContext(s.ctx)
	grp.Go(func() error { return em.Run(ctx) })
	grp.Go(func() error { return s.readLoop(conn) })
	grp.Go(func() error {
		<-ctx.Done()
		conn.Close()
		return nil
	})

	s.open(clients)
	s.closed(grp.Wait())
}

func (s *Session) open(clients []*Client) {
	s.registry.insertIfAbsent(s.key, s)
	s.metrics.activeSessions.Inc()
	s.logger.Info().Msg("socket connected")

	for _, c := range clients {
		c.onOpen()
	}

	interval := s.Parameters().HeartbeatInterval()
	if interval <= 0 {
		s.logger.Warn().Msg("server declared no heartbeat timeout, heartbeats disabled")
		return
	}
	stop := s.opts.scheduler.Every(interval, s.heartbeat)
	s.mu.Lock()
	if s.state == StateOpen {
		s.stopHeartbeat = stop
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	stop()
}

// heartbeat never blocks on a full queue, so cancelling it cannot stall behind a stuck writer
func (s *Session) heartbeat() {
	if err := s.trySend(NewHeartbeatPacket()); err != nil {
		s.logger.Debug().Err(err).Msg("heartbeat dropped")
		return
	}
	s.metrics.heartbeats.Inc()
	s.logger.Debug().Msg("heartbeat sent")
}

func (s *Session) readLoop(conn engine.Conn) error {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, engine.ErrBinaryFrame) {
				s.logger.Warn().Msg("binary frame ignored")
				continue
			}
			return err
		}
		s.onMessage(frame)
	}
}

func (s *Session) onMessage(frame string) {
	s.logger.Debug().Str("frame", frame).Msg("received")
	s.record(DirectionInbound, frame)

	p, err := Decode(frame)
	if err != nil {
		s.logger.Warn().Err(err).Msg("dropping frame")
		return
	}
	s.metrics.packetsReceived.WithLabelValues(p.Type.String()).Inc()

	path := endpointPath(p.Endpoint)
	c := s.client(path)
	if c == nil && p.Type.Valid() {
		s.logger.Warn().Str("endpoint", path).Stringer("type", p.Type).Msg("no client for endpoint")
	}

	switch p.Type {
	case PacketTypeDisconnect:
		s.logger.Info().Str("endpoint", path).Msg("received disconnect")
		if c != nil {
			c.receivedDisconnect()
		}
		s.disconnectEndpoint(path)
	case PacketTypeConnect:
		if c != nil {
			c.onConnect()
		}
	case PacketTypeHeartbeat:
		s.logger.Debug().Msg("heartbeat received")
	case PacketTypeMessage, PacketTypeJSONMessage:
		if c != nil {
			c.onMessage(p.Data)
		}
	case PacketTypeEvent:
		if c != nil {
			name, args := p.Event()
			c.fireEvent(name, args)
		}
	case PacketTypeAck:
		s.logger.Debug().Str("endpoint", path).Msg("message ack")
	case PacketTypeError:
		if c != nil {
			c.notifyError(RemoteError(p.Data))
		}
	case PacketTypeNoop:
	default:
		s.logger.Warn().Str("frame", frame).Msg("unknown packet type")
	}
}

// closed runs once the transport is gone, whoever closed it.
func (s *Session) closed(err error) {
	s.mu.Lock()
	local := s.state == StateClosing || s.state == StateClosed
	s.state = StateClosed
	stop := s.stopHeartbeat
	s.stopHeartbeat = nil
	counted := s.counted
	s.counted = false
	clients := s.snapshot()
	s.clients = make(map[string]*Client)
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.registry.removeSession(s.key, s)
	if counted {
		s.metrics.activeSessions.Dec()
	}

	abnormal := err != nil && !local &&
		!errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled)
	if abnormal {
		s.metrics.transportErrors.Inc()
		s.logger.Error().Err(err).Msg("transport error")
	}
	for _, c := range clients {
		if abnormal {
			c.notifyError(&TransportError{Err: err})
		}
		c.receivedDisconnect()
	}
	s.cancel()
	s.logger.Info().Msg("socket closed")
}

// disconnect tears the whole session down: heartbeat first, then a root
// Disconnect packet and the transport itself.
func (s *Session) disconnect() {
	s.mu.Lock()
	prev := s.state
	if prev == StateClosing || prev == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	stop := s.stopHeartbeat
	s.stopHeartbeat = nil
	em, conn := s.emitter, s.conn
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.registry.removeSession(s.key, s)

	if prev == StateOpen {
		if err := s.submit(em, NewDisconnectPacket(RootEndpoint), false); err != nil {
			s.logger.Warn().Err(err).Msg("disconnect dropped")
		} else {
			s.logger.Info().Msg("disconnect sent")
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.flushTimeout)
		if err := em.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("outbound queue not flushed")
		}
		cancel()
		conn.Close()
		s.cancel()
		return
	}

	// never opened: stop the handshake or dial in flight
	s.cancel()
	s.mu.Lock()
	s.state = StateClosed
	clients := s.snapshot()
	s.clients = make(map[string]*Client)
	s.mu.Unlock()
	for _, c := range clients {
		c.receivedDisconnect()
	}
}

// disconnectEndpoint removes path from the session. Removing the last
// endpoint or the root endpoint tears the session down.
func (s *Session) disconnectEndpoint(path string) {
	s.mu.Lock()
	delete(s.clients, path)
	remaining := len(s.clients)
	open := s.state == StateOpen
	s.mu.Unlock()

	if remaining == 0 || path == RootEndpoint {
		s.logger.Debug().Str("endpoint", path).Msg("out of endpoints, disconnecting")
		s.disconnect()
		return
	}
	if open {
		s.send(NewDisconnectPacket(path))
	}
}

func (s *Session) connectEndpoint(path string) error {
	return s.send(NewConnectPacket(path))
}

func (s *Session) emit(path, event, args string) error {
	return s.send(NewEventPacket(path, event, args))
}

// attach returns the client registered for path, creating it with fn when absent.
func (s *Session) attach(path string, fn func() *Client) (c *Client, created, open bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosing, StateClosed, StateFailed:
		return nil, false, false, ErrSessionClosed
	}
	open = s.state == StateOpen
	if c = s.clients[path]; c != nil {
		return
	}
	c = fn()
	s.clients[path] = c
	created = true
	return
}

func (s *Session) client(path string) *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients[path]
}

func (s *Session) snapshot() []*Client {
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	return clients
}

// send queues p on the open transport, waiting for room in the queue
func (s *Session) send(p *Packet) error {
	return s.enqueue(p, true)
}

// trySend is send that drops p when the queue is full
func (s *Session) trySend(p *Packet) error {
	return s.enqueue(p, false)
}

func (s *Session) enqueue(p *Packet, wait bool) error {
	s.mu.Lock()
	em, open := s.emitter, s.state == StateOpen
	s.mu.Unlock()
	if !open {
		return ErrSessionClosed
	}
	return s.submit(em, p, wait)
}

func (s *Session) submit(em *engine.Emitter, p *Packet, wait bool) error {
	frame := p.Encode()
	submit := em.TrySubmit
	if wait {
		submit = em.Submit
	}
	if err := submit(frame); err != nil {
		return err
	}
	s.metrics.packetsSent.WithLabelValues(p.Type.String()).Inc()
	s.record(DirectionOutbound, frame)
	s.logger.Debug().Str("frame", frame).Msg("sent")
	return nil
}

func (s *Session) record(dir Direction, frame string) {
	if s.opts.journal == nil {
		return
	}
	if err := s.opts.journal.record(dir, s.key, frame); err != nil {
		s.logger.Warn().Err(err).Msg("journal")
	}
}
