package jetstream

import (
	"errors"
	"fmt"
	"time"

	server "github.com/nats-io/nats-server/v2/server"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type serverConfig struct {
	readyTimeout time.Duration
	maxStore     int64
	logger       zerolog.Logger
}

type ServerOption func(*serverConfig)

// WithReadyTimeout bounds how long NewServer waits for the server to accept
// connections.
func WithReadyTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.readyTimeout = d }
}

// WithMaxStore caps JetStream file storage in bytes. Zero leaves the server
// default.
func WithMaxStore(bytes int64) ServerOption {
	return func(c *serverConfig) { c.maxStore = bytes }
}

func WithServerLogger(logger zerolog.Logger) ServerOption {
	return func(c *serverConfig) { c.logger = logger }
}

// Server is an in-process NATS server with JetStream enabled. It does not
// listen on the network; clients connect through Connect.
type Server struct{ ns *server.Server }

func NewServer(storeDir string, opts ...ServerOption) (*Server, error) {
	cfg := serverConfig{
		readyTimeout: 5 * time.Second,
		logger:       log.Logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ns, err := server.NewServer(&server.Options{
		ServerName:        "requrl",
		DontListen:        true,
		JetStream:         true,
		StoreDir:          storeDir,
		JetStreamMaxStore: cfg.maxStore,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}

	debug := cfg.logger.GetLevel() <= zerolog.DebugLevel
	ns.SetLoggerV2(natsLogger{cfg.logger.With().Str("component", "nats").Logger()}, debug, false, false)

	go ns.Start()
	if !ns.ReadyForConnections(cfg.readyTimeout) {
		ns.Shutdown()
		return nil, errors.New("nats server not ready")
	}
	return &Server{ns: ns}, nil
}

func (s *Server) Connect() (*nats.Conn, error) {
	return nats.Connect(s.ns.ClientURL(),
		nats.InProcessServer(s.ns),
		nats.Name("requrl"),
	)
}

func (s *Server) Shutdown() {
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}

// natsLogger routes server logs through zerolog.
type natsLogger struct{ l zerolog.Logger }

func (n natsLogger) Noticef(format string, v ...any) { n.l.Info().Msgf(format, v...) }
func (n natsLogger) Warnf(format string, v ...any)   { n.l.Warn().Msgf(format, v...) }
func (n natsLogger) Fatalf(format string, v ...any)  { n.l.Error().Msgf(format, v...) }
func (n natsLogger) Errorf(format string, v ...any)  { n.l.Error().Msgf(format, v...) }
func (n natsLogger) Debugf(format string, v ...any)  { n.l.Debug().Msgf(format, v...) }
func (n natsLogger) Tracef(format string, v ...any)  { n.l.Trace().Msgf(format, v...) }
