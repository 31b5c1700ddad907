package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/peersync/peersync-go/pkg/log"
)

// Options configures a Session.
type Options struct {
	// CertFile and KeyFile hold the PEM encoded local identity loaded when
	// TLS is activated.
	CertFile string
	KeyFile  string

	// DebugLevel enables data tracing at TraceLevel and above.
	DebugLevel int

	// TraceWriter receives text trace lines (default: os.Stderr).
	TraceWriter io.Writer

	// Logger for operational messages (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives trace events (optional).
	ProtocolLogger log.Logger
}

// Session is one connection to a peer.
type Session struct {
	id     string
	opts   Options
	logger *slog.Logger

	in  io.ReadCloser
	out io.WriteCloser

	// conn is set when a single socket serves as both endpoints.
	conn net.Conn

	usable bool
	closed bool

	// Set together while TLS is active.
	tlsConn  *tls.Conn
	identity *tls.Certificate
	role     Role

	peer    string
	channel Channel
}

func newSession(in io.ReadCloser, out io.WriteCloser, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		id:     uuid.New().String(),
		opts:   opts,
		in:     in,
		out:    out,
		usable: true,
	}
	s.logger = opts.Logger.With("conn_id", s.id)
	s.channel.s = s

	if c, ok := in.(net.Conn); ok && sameEndpoint(in, out) {
		s.conn = c
	}
	return s
}

// OpenClient connects to peer through resolver and returns a plaintext
// session. A nil resolver uses the zero Resolver.
func OpenClient(ctx context.Context, resolver *Resolver, peer string, opts Options) (*Session, error) {
	if resolver == nil {
		resolver = &Resolver{Logger: opts.Logger}
	}

	conn, err := resolver.Connect(ctx, peer)
	if err != nil {
		return nil, err
	}

	// A fresh socket that refuses TCP_NODELAY means the environment is broken.
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set TCP_NODELAY: %w", err)
		}
	}

	s := newSession(conn, conn, opts)
	s.peer = peer
	s.role = RoleClient
	s.logState(log.StateEntityConnection, "", "CONNECTED", "")
	s.logger.Debug("session opened", "peer", peer, "remote_addr", conn.RemoteAddr().String())
	return s, nil
}

// Adopt wraps endpoints accepted or created elsewhere, such as a listening
// socket's connection or the pipes of a tunnel. The session closes them on
// Close. in and out may be the same object.
func Adopt(in io.ReadCloser, out io.WriteCloser, opts Options) *Session {
	s := newSession(in, out, opts)
	s.role = RoleServer

	// Best effort only; pipes have no such option.
	if tcp, ok := out.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			s.logger.Debug("set TCP_NODELAY failed", "error", err)
		}
	}

	s.logState(log.StateEntityConnection, "", "ADOPTED", "")
	return s
}

// AdoptClient adopts endpoints that lead to peer, with the local side
// acting as client, such as the pipes of a tunnel this process started.
func AdoptClient(in io.ReadCloser, out io.WriteCloser, peer string, opts Options) *Session {
	s := newSession(in, out, opts)
	s.peer = peer
	s.role = RoleClient
	s.logState(log.StateEntityConnection, "", "ADOPTED", "")
	return s
}

// AdoptConn adopts a single connection as both endpoints.
func AdoptConn(conn net.Conn, opts Options) *Session {
	return Adopt(conn, conn, opts)
}

// ID returns the unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// Peer returns the name the session was opened with, or the name set with
// SetPeer.
func (s *Session) Peer() string {
	return s.peer
}

// SetPeer records the peer name, e.g. after a server learns who connected.
func (s *Session) SetPeer(peer string) {
	s.peer = peer
}

// TLSActive reports whether traffic is encrypted.
func (s *Session) TLSActive() bool {
	return s.tlsConn != nil
}

// ConnectionState returns the TLS state. ok is false when TLS is inactive.
func (s *Session) ConnectionState() (state tls.ConnectionState, ok bool) {
	if s.tlsConn == nil {
		return tls.ConnectionState{}, false
	}
	return s.tlsConn.ConnectionState(), true
}

// PeerCertificates returns the certificates presented by the peer, leaf
// first. It is empty when TLS is inactive.
func (s *Session) PeerCertificates() []*x509.Certificate {
	if s.tlsConn == nil {
		return nil
	}
	return s.tlsConn.ConnectionState().PeerCertificates
}

// RemoteAddr returns the peer address, or nil for non-socket endpoints.
func (s *Session) RemoteAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// Channel returns the buffered I/O channel of the session.
func (s *Session) Channel() *Channel {
	return &s.channel
}

// ActivateTLS upgrades the session to TLS, playing role in the handshake.
// It is a no-op when TLS is already active.
//
// Unusable identity files and failed handshakes return a *FatalError, as
// does any alert the peer sent at fatal level. A warning-level alert during
// a handshake that still completes is logged and the session is treated as
// encrypted.
func (s *Session) ActivateTLS(ctx context.Context, role Role) error {
	if s.tlsConn != nil {
		return nil
	}
	if !s.usable {
		return ErrNotUsable
	}
	if s.channel.stage.len() > 0 {
		return ErrBufferedPlaintext
	}

	identity, err := tls.LoadX509KeyPair(s.opts.CertFile, s.opts.KeyFile)
	if err != nil {
		s.logError(log.LayerTLS, err, true, "load identity")
		return &FatalError{Op: "load identity", Err: err}
	}

	var cfg *tls.Config
	if role == RoleServer {
		cfg, err = NewServerTLSConfig(identity)
	} else {
		cfg, err = NewClientTLSConfig(identity)
	}
	if err != nil {
		s.logError(log.LayerTLS, err, true, "load identity")
		return &FatalError{Op: "load identity", Err: err}
	}

	var conn net.Conn = s.conn
	if conn == nil {
		conn = &pipeConn{in: s.in, out: s.out}
	}
	watcher := &alertWatcher{Conn: conn}

	var tc *tls.Conn
	if role == RoleServer {
		tc = tls.Server(watcher, cfg)
	} else {
		tc = tls.Client(watcher, cfg)
	}

	err = tc.HandshakeContext(ctx)
	watcher.stop()
	outcome, alert := classifyHandshake(err, watcher.Warnings())
	switch outcome {
	case handshakeOK:
	case handshakeWarning:
		s.logger.Warn("warning alert received from peer", "alert", alert)
	default:
		if alert != "" {
			s.logger.Error("fatal alert received from peer", "alert", alert)
		} else {
			s.logger.Error("TLS handshake failed", "error", err)
		}
		s.logError(log.LayerTLS, err, true, "handshake")
		return &FatalError{Op: "handshake", Err: err}
	}

	s.tlsConn = tc
	s.identity = &identity
	s.role = role

	reason := ""
	if outcome == handshakeWarning {
		reason = alert
	}
	s.logState(log.StateEntityTLS, "PLAINTEXT", "ACTIVE", reason)
	s.logger.Debug("TLS active", "role", role.String(), "version", tls.VersionName(tc.ConnectionState().Version))
	return nil
}

// Close shuts the session down: an orderly TLS close when encrypted, then
// the output endpoint, then the input endpoint if it is distinct. Calling
// Close again, or on a nil session, returns ErrAlreadyClosed.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return ErrAlreadyClosed
	}
	s.closed = true
	s.usable = false

	var err error
	if s.tlsConn != nil {
		err = multierr.Append(err, s.tlsConn.CloseWrite())
		s.tlsConn = nil
		s.identity = nil
	}

	if s.out != nil {
		err = multierr.Append(err, s.out.Close())
	}
	if s.in != nil && !sameEndpoint(s.in, s.out) {
		err = multierr.Append(err, s.in.Close())
	}

	s.logState(log.StateEntityConnection, "", "CLOSED", "")
	return err
}

// transportRead reads through TLS when active, otherwise from the raw input.
func (s *Session) transportRead(b []byte) (int, error) {
	if s.tlsConn != nil {
		return s.tlsConn.Read(b)
	}
	if !s.usable {
		return 0, ErrNotUsable
	}
	return s.in.Read(b)
}

// transportWrite writes all of b through TLS when active, otherwise to the
// raw output.
func (s *Session) transportWrite(b []byte) (int, error) {
	if s.tlsConn != nil {
		return s.tlsConn.Write(b)
	}
	if !s.usable {
		return 0, ErrNotUsable
	}
	return writeFull(s.out, b)
}

func (s *Session) dataLayer() log.Layer {
	if s.tlsConn != nil {
		return log.LayerTLS
	}
	return log.LayerTransport
}

func (s *Session) event(category log.Category, layer log.Layer) log.Event {
	ev := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.id,
		Layer:        layer,
		Category:     category,
		PeerName:     s.peer,
	}
	if s.role == RoleServer {
		ev.LocalRole = log.RoleServer
	}
	if addr := s.RemoteAddr(); addr != nil {
		ev.RemoteAddr = addr.String()
	}
	return ev
}

func (s *Session) logState(entity log.StateEntity, oldState, newState, reason string) {
	if s.opts.ProtocolLogger == nil {
		return
	}
	ev := s.event(log.CategoryState, log.LayerSession)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   entity,
		OldState: oldState,
		NewState: newState,
		Reason:   reason,
	}
	s.opts.ProtocolLogger.Log(ev)
}

func (s *Session) logError(layer log.Layer, err error, fatal bool, op string) {
	if s.opts.ProtocolLogger == nil {
		return
	}
	ev := s.event(log.CategoryError, layer)
	ev.Error = &log.ErrorEventData{
		Layer:   layer,
		Message: err.Error(),
		Fatal:   fatal,
		Context: op,
	}
	s.opts.ProtocolLogger.Log(ev)
}
