package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Handler serves one accepted session. The server closes the session when
// the handler returns.
type Handler func(ctx context.Context, sess *Session)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address to listen on (e.g., ":30865" or "127.0.0.1:0").
	Address string

	// Options applied to every accepted session.
	Options Options

	// TLS activates TLS in the server role right after accept. When false,
	// the handler may activate it later (e.g. on an "ssl" command).
	TLS bool

	// Handler serves each session. Required.
	Handler Handler

	// Logger for accept and session errors (default: slog.Default()).
	Logger *slog.Logger
}

// Server accepts TCP connections and serves each one as a Session on its
// own goroutine.
type Server struct {
	config   ServerConfig
	logger   *slog.Logger
	listener net.Listener

	// Live sessions and the sockets behind them
	conns   map[*Session]net.Conn
	connsMu sync.Mutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	group   errgroup.Group
}

// NewServer creates a new server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if config.Address == "" {
		config.Address = ":" + DefaultService
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Options.Logger == nil {
		config.Options.Logger = logger
	}

	return &Server{
		config: config,
		logger: logger,
		conns:  make(map[*Session]net.Conn),
	}, nil
}

// Start listens and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.listener = listener
	s.running.Store(true)

	s.group.Go(s.acceptLoop)

	s.logger.Info("listening", "addr", listener.Addr().String(), "tls", s.config.TLS)
	return nil
}

// Stop closes the listener and every live connection, then waits for the
// handlers to return.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}

	s.cancel()
	err := s.listener.Close()

	// Closing the socket unblocks the handler; the handler goroutine
	// closes its own session.
	s.connsMu.Lock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	if werr := s.group.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		s.group.Go(func() error {
			s.serve(conn)
			return nil
		})
	}
}

func (s *Server) serve(conn net.Conn) {
	sess := AdoptConn(conn, s.config.Options)

	s.connsMu.Lock()
	if !s.running.Load() {
		s.connsMu.Unlock()
		sess.Close()
		return
	}
	s.conns[sess] = conn
	s.connsMu.Unlock()

	defer func() {
		s.connsMu.Lock()
		delete(s.conns, sess)
		s.connsMu.Unlock()

		if err := sess.Close(); err != nil && !errors.Is(err, ErrAlreadyClosed) {
			sess.logger.Debug("close failed", "error", err)
		}
	}()

	sess.logger.Info("connection accepted", "remote_addr", conn.RemoteAddr().String())

	if s.config.TLS {
		if err := sess.ActivateTLS(s.ctx, RoleServer); err != nil {
			sess.logger.Error("TLS activation failed", "error", err)
			return
		}
	}

	s.config.Handler(s.ctx, sess)
}
