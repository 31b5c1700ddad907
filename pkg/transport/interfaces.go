package transport

import (
	"context"
	"crypto/x509"
	"io"
	"net"
)

// PeerSource exposes the TLS material a pinning check needs.
// Implemented by Session.
type PeerSource interface {
	// TLSActive reports whether the session is encrypted.
	TLSActive() bool

	// PeerCertificates returns the peer's chain, leaf first.
	PeerCertificates() []*x509.Certificate
}

// PeerVerifier decides whether the peer behind a session is trusted.
// Implemented by trust.Verifier.
type PeerVerifier interface {
	CheckPeer(ctx context.Context, src PeerSource, peer string, fatalOnMismatch bool) (bool, error)
}

// LineChannel is the I/O surface a line-oriented protocol needs.
// Implemented by Channel.
type LineChannel interface {
	io.Writer

	// Read fills the slice unless the stream ends first.
	Read(dst []byte) (int, error)

	// Printf writes a formatted line.
	Printf(format string, args ...any) (int, error)

	// ReadLine reads one newline-terminated line without the newline.
	ReadLine(dst []byte) int

	// ReadLineString reads one line as a string.
	ReadLineString(max int) (string, error)
}

// Connector establishes connections to named peers.
// Implemented by Resolver.
type Connector interface {
	Connect(ctx context.Context, peer string) (net.Conn, error)
}

// Compile-time interface satisfaction checks.
var (
	_ PeerSource  = (*Session)(nil)
	_ LineChannel = (*Channel)(nil)
	_ Connector   = (*Resolver)(nil)
	_ HostLookup  = SystemLookup{}
	_ HostLookup  = ChainLookup(nil)
	_ net.Conn    = (*pipeConn)(nil)
)
