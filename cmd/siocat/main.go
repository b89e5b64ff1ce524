// Command siocat talks to socket.io v1 servers from the shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zyxar/socketio1"
)

var version = "dev"

var errTimeout = errors.New("timed out waiting for endpoint to connect")

type app struct {
	configPath  string
	logLevel    string
	defaultPort int
	journal     string
	metricsAddr string
	timeout     time.Duration

	cfg    Config
	logger zerolog.Logger
	out    io.Writer
}

func main() {
	a := &app{out: os.Stdout}
	if err := a.rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "siocat: %s\n", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "siocat",
		Short:         "Connect to socket.io v1 endpoints",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "TOML config file")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.IntVarP(&a.defaultPort, "default-port", "p", 80, "port used when the uri has none")
	flags.StringVar(&a.journal, "journal", "", "append every frame to this msgpack journal")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.DurationVar(&a.timeout, "timeout", 10*time.Second, "how long send and emit wait for the endpoint")

	root.AddCommand(
		a.listenCmd(),
		a.sendCmd(),
		a.emitCmd(),
		a.replayCmd(),
	)
	return root
}

// configure merges the config file and the flags that were set explicitly
func (a *app) configure(cmd *cobra.Command) error {
	cfg := DefaultConfig()
	if a.configPath != "" {
		var err error
		if cfg, err = LoadConfig(a.configPath); err != nil {
			return err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		level, err := parseLevel(a.logLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if flags.Changed("default-port") {
		cfg.DefaultPort = a.defaultPort
	}
	if flags.Changed("journal") {
		cfg.Journal = a.journal
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}
	if flags.Changed("timeout") {
		cfg.Timeout = a.timeout
	}
	a.cfg = cfg
	a.logger = NewLogger(os.Stderr, cfg.LogLevel)
	return nil
}

// manager builds a Manager from the configuration; stop releases everything it opened
func (a *app) manager() (m *socketio.Manager, stop func(), err error) {
	reg := prometheus.NewRegistry()
	opts := []socketio.Option{
		socketio.WithDefaultPort(a.cfg.DefaultPort),
		socketio.WithLogger(a.logger),
		socketio.WithRegisterer(reg),
		socketio.WithQueueSize(a.cfg.QueueSize),
		socketio.WithHeader(a.cfg.Header),
	}

	var closers []func()
	if a.cfg.Journal != "" {
		f, err := os.OpenFile(a.cfg.Journal, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		opts = append(opts, socketio.WithJournal(socketio.NewJournal(f)))
		closers = append(closers, func() { f.Close() })
	}
	if a.cfg.MetricsAddr != "" {
		srv := serveMetrics(a.cfg.MetricsAddr, reg, a.logger)
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		})
	}

	m = socketio.NewManager(opts...)
	stop = func() {
		m.Close()
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return m, stop, nil
}

func (a *app) listenCmd() *cobra.Command {
	var events []string
	cmd := &cobra.Command{
		Use:   "listen <uri>",
		Short: "Print messages, errors and events of an endpoint until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return a.listen(ctx, args[0], events)
		},
	}
	cmd.Flags().StringSliceVarP(&events, "event", "e", nil, "event names to print")
	return cmd
}

func (a *app) listen(ctx context.Context, uri string, events []string) error {
	m, stop, err := a.manager()
	if err != nil {
		return err
	}
	defer stop()

	closed := make(chan struct{})
	var once sync.Once
	c, err := m.Connect(uri, socketio.DelegateFuncs{
		Connect: func(c *socketio.Client) {
			a.logger.Info().Str("endpoint", c.Path()).Msg("connected")
		},
		Message: func(c *socketio.Client, data string) {
			fmt.Fprintf(a.out, "message %s\n", data)
		},
		Error: func(c *socketio.Client, err error) {
			a.logger.Error().Err(err).Str("endpoint", c.Path()).Msg("endpoint error")
		},
		Close: func(c *socketio.Client) {
			once.Do(func() { close(closed) })
		},
	})
	if err != nil {
		return err
	}
	for _, name := range events {
		name := name
		c.On(name, socketio.EventFunc(func(_ *socketio.Client, args string) {
			fmt.Fprintf(a.out, "event %s %s\n", name, args)
		}))
	}

	select {
	case <-ctx.Done():
		c.Disconnect()
	case <-closed:
		a.logger.Info().Msg("endpoint closed")
	}
	return nil
}

func (a *app) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <uri> <text>",
		Short: "Send one message to an endpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.once(args[0], func(c *socketio.Client) error {
				return c.Send(args[1])
			})
		},
	}
}

func (a *app) emitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "emit <uri> <event> <args-json>",
		Short: "Emit one event to an endpoint",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.once(args[0], func(c *socketio.Client) error {
				return c.Emit(args[1], args[2])
			})
		},
	}
}

// once connects to uri, runs fn once the endpoint is connected and disconnects
func (a *app) once(uri string, fn func(c *socketio.Client) error) error {
	m, stop, err := a.manager()
	if err != nil {
		return err
	}
	defer stop()

	connected := make(chan struct{})
	errc := make(chan error, 1)
	var once sync.Once
	c, err := m.Connect(uri, socketio.DelegateFuncs{
		Connect: func(*socketio.Client) {
			once.Do(func() { close(connected) })
		},
		Error: func(_ *socketio.Client, err error) {
			select {
			case errc <- err:
			default:
			}
		},
	})
	if err != nil {
		return err
	}
	defer c.Disconnect()

	select {
	case <-connected:
	case err := <-errc:
		return err
	case <-time.After(a.cfg.Timeout):
		return errTimeout
	}
	return fn(c)
}

func (a *app) replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <journal-file>",
		Short: "Print the frames recorded in a journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return a.replay(f)
		},
	}
}

func (a *app) replay(r io.Reader) error {
	jr := socketio.NewJournalReader(r)
	for {
		rec, err := jr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		fmt.Fprintf(a.out, "%s %s %-3s %s\n",
			rec.Time.Format(time.RFC3339Nano), rec.Session, rec.Direction, rec.Frame)
	}
}
