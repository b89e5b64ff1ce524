package socketio

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zyxar/socketio1/engine"
)

const waitTimeout = 2 * time.Second

var errConnClosed = errors.New("use of closed connection")

type fakeConn struct {
	in     chan string
	out    chan string
	errc   chan error
	closed chan struct{}
	once   sync.Once
	stall  bool // writes block until the conn is closed
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan string, 16),
		out:    make(chan string, 64),
		errc:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (string, error) {
	select {
	case frame := <-c.in:
		return frame, nil
	case err := <-c.errc:
		return "", err
	case <-c.closed:
		return "", io.EOF
	}
}

func (c *fakeConn) WriteMessage(frame string) error {
	if c.stall {
		<-c.closed
		return errConnClosed
	}
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.out <- frame
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// push delivers frame as if the server had sent it
func (c *fakeConn) push(frame string) { c.in <- frame }

// fail breaks the connection with err
func (c *fakeConn) fail(err error) { c.errc <- err }

func (c *fakeConn) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-c.out:
		assert.Equal(t, want, got)
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for frame %q", want)
	}
}

func (c *fakeConn) expectNone(t *testing.T) {
	t.Helper()
	select {
	case got := <-c.out:
		t.Fatalf("unexpected frame %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeDialer struct {
	mu     sync.Mutex
	urls   []string
	err    error
	stall  bool
	dialed chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeConn, 8)}
}

func (d *fakeDialer) Dial(ctx context.Context, rawurl string, _ http.Header) (engine.Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, rawurl)
	err, stall := d.err, d.stall
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	conn := newFakeConn()
	conn.stall = stall
	d.dialed <- conn
	return conn, nil
}

func (d *fakeDialer) dialedURLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

type fakeDoer struct {
	body   string
	status int
	gate   chan struct{} // when set, requests wait for it to close
	calls  int32
	mu     sync.Mutex
	urls   []string
}

func (d *fakeDoer) Do(r *http.Request) (*http.Response, error) {
	atomic.AddInt32(&d.calls, 1)
	d.mu.Lock()
	d.urls = append(d.urls, r.URL.String())
	d.mu.Unlock()
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-r.Context().Done():
			return nil, r.Context().Err()
		}
	}
	status := d.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(d.body)),
	}, nil
}

func (d *fakeDoer) callCount() int {
	return int(atomic.LoadInt32(&d.calls))
}

// manualScheduler records the heartbeat interval and fires only on demand
type manualScheduler struct {
	mu        sync.Mutex
	fn        func()
	active    bool
	cancels   int
	scheduled chan time.Duration
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{scheduled: make(chan time.Duration, 8)}
}

func (s *manualScheduler) Every(d time.Duration, fn func()) func() {
	s.mu.Lock()
	s.fn = fn
	s.active = true
	s.mu.Unlock()
	s.scheduled <- d
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.active = false
			s.cancels++
			s.mu.Unlock()
		})
	}
}

func (s *manualScheduler) fire() {
	s.mu.Lock()
	fn, active := s.fn, s.active
	s.mu.Unlock()
	if active {
		fn()
	}
}

func (s *manualScheduler) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

type recordDelegate struct {
	mu       sync.Mutex
	connects int
	closes   int
	messages []string
	errs     []error

	connected chan struct{}
	closed    chan struct{}
	errc      chan error
}

func newRecordDelegate() *recordDelegate {
	return &recordDelegate{
		connected: make(chan struct{}, 8),
		closed:    make(chan struct{}, 8),
		errc:      make(chan error, 8),
	}
}

func (d *recordDelegate) OnConnect(c *Client) {
	d.mu.Lock()
	d.connects++
	d.mu.Unlock()
	d.connected <- struct{}{}
}

func (d *recordDelegate) OnMessage(c *Client, data string) {
	d.mu.Lock()
	d.messages = append(d.messages, data)
	d.mu.Unlock()
}

func (d *recordDelegate) OnClose(c *Client) {
	d.mu.Lock()
	d.closes++
	d.mu.Unlock()
	d.closed <- struct{}{}
}

func (d *recordDelegate) OnError(c *Client, err error) {
	d.mu.Lock()
	d.errs = append(d.errs, err)
	d.mu.Unlock()
	d.errc <- err
}

func (d *recordDelegate) counts() (connects, closes, errs int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects, d.closes, len(d.errs)
}

func (d *recordDelegate) received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.messages...)
}

func (d *recordDelegate) waitConnect(t *testing.T) {
	t.Helper()
	select {
	case <-d.connected:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for OnConnect")
	}
}

func (d *recordDelegate) waitClose(t *testing.T) {
	t.Helper()
	select {
	case <-d.closed:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for OnClose")
	}
}

func (d *recordDelegate) waitError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-d.errc:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for OnError")
	}
	return nil
}

type harness struct {
	m      *Manager
	doer   *fakeDoer
	dialer *fakeDialer
	sched  *manualScheduler
	reg    *prometheus.Registry
}

func newHarness(t *testing.T, body string, opts ...Option) *harness {
	h := &harness{
		doer:   &fakeDoer{body: body},
		dialer: newFakeDialer(),
		sched:  newManualScheduler(),
		reg:    prometheus.NewRegistry(),
	}
	opts = append([]Option{
		WithDefaultPort(80),
		WithHTTPClient(h.doer),
		WithDialer(h.dialer),
		WithScheduler(h.sched),
		WithLogger(zerolog.Nop()),
		WithRegisterer(h.reg),
	}, opts...)
	h.m = NewManager(opts...)
	t.Cleanup(func() { h.m.Close() })
	return h
}

func (h *harness) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case conn := <-h.dialer.dialed:
		return conn
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for dial")
	}
	return nil
}

func (h *harness) connect(t *testing.T, uri string, d Delegate) *Client {
	t.Helper()
	c, err := h.m.Connect(uri, d)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for session to finish")
	}
}
