package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is the siocat configuration: defaults, then the TOML file, then flags.
type Config struct {
	DefaultPort int
	LogLevel    zerolog.Level
	QueueSize   int
	Journal     string
	MetricsAddr string
	Timeout     time.Duration
	Header      http.Header
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		DefaultPort: 80,
		LogLevel:    zerolog.InfoLevel,
		QueueSize:   32,
		Timeout:     10 * time.Second,
		Header:      http.Header{},
	}
}

type fileConfig struct {
	DefaultPort int               `toml:"default_port"`
	LogLevel    string            `toml:"log_level"`
	QueueSize   int               `toml:"queue_size"`
	Journal     string            `toml:"journal"`
	MetricsAddr string            `toml:"metrics_addr"`
	Timeout     string            `toml:"timeout"`
	Header      map[string]string `toml:"header"`
}

// LoadConfig reads the TOML file at path over the defaults
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load siocat config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		log.Warn().Str("config", path).Msgf("unknown config keys: %v", undecoded)
	}

	if meta.IsDefined("default_port") {
		if raw.DefaultPort < 0 || raw.DefaultPort > 65535 {
			return Config{}, fmt.Errorf("default_port %d out of range", raw.DefaultPort)
		}
		cfg.DefaultPort = raw.DefaultPort
	}

	if meta.IsDefined("log_level") {
		level, err := parseLevel(raw.LogLevel)
		if err != nil {
			return Config{}, err
		}
		cfg.LogLevel = level
	}

	if meta.IsDefined("queue_size") {
		if raw.QueueSize <= 0 {
			return Config{}, fmt.Errorf("queue_size must be positive, got %d", raw.QueueSize)
		}
		cfg.QueueSize = raw.QueueSize
	}

	if meta.IsDefined("journal") {
		cfg.Journal = strings.TrimSpace(raw.Journal)
	}

	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	for k, v := range raw.Header {
		cfg.Header.Set(k, v)
	}

	return cfg, nil
}

func parseLevel(s string) (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log_level: %w", err)
	}
	if level == zerolog.NoLevel {
		return zerolog.InfoLevel, nil
	}
	return level, nil
}

// NewLogger builds the console logger siocat writes its diagnostics with
func NewLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Str("app", "siocat").Logger()
	log.Logger = logger
	return logger
}

func metricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}

// serveMetrics exposes reg on addr until the returned server is shut down
func serveMetrics(addr string, reg *prometheus.Registry, logger zerolog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsRouter(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}
