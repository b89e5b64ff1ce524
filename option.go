package socketio

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/zyxar/socketio1/engine"
)

// Option configures a Manager
type Option func(*options)

type options struct {
	defaultPort    int
	dialer         engine.Dialer
	httpClient     engine.HTTPDoer
	scheduler      engine.Scheduler
	logger         zerolog.Logger
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
	journal        *Journal
	header         http.Header
	queueSize      int
	flushTimeout   time.Duration
}

func defaultOptions() options {
	return options{
		dialer:       engine.WebsocketDialer,
		httpClient:   http.DefaultClient,
		scheduler:    engine.TickerScheduler,
		logger:       log.Logger,
		queueSize:    32,
		flushTimeout: time.Second,
	}
}

// WithDefaultPort sets the port used when a uri has none
func WithDefaultPort(port int) Option {
	return func(o *options) {
		o.defaultPort = port
	}
}

// WithDialer sets the websocket Dialer
func WithDialer(d engine.Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithHTTPClient sets the client performing the handshake request
func WithHTTPClient(c engine.HTTPDoer) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithScheduler sets the Scheduler firing heartbeats
func WithScheduler(s engine.Scheduler) Option {
	return func(o *options) {
		if s != nil {
			o.scheduler = s
		}
	}
}

// WithLogger sets the logger; the default is the zerolog global logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRegisterer registers the Prometheus collectors with r.
// Without it metrics are still counted but not exported.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithTracerProvider sets the OpenTelemetry provider; the default is the global one
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithJournal records every inbound and outbound frame to j
func WithJournal(j *Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// WithHeader adds header to the handshake and websocket requests
func WithHeader(header http.Header) Option {
	return func(o *options) {
		o.header = header.Clone()
	}
}

// WithQueueSize sets the outbound frame queue length per session
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithFlushTimeout bounds how long a disconnect waits for queued frames to be
// written before the connection is closed
func WithFlushTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.flushTimeout = d
		}
	}
}

func (o *options) tracer() trace.Tracer {
	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer("github.com/zyxar/socketio1")
}
