package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"reflect"
	"syscall"
	"time"

	"go.uber.org/multierr"
)

// pipeAddr is the address reported for endpoints that are not sockets.
type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

// pipeConn joins a distinct input and output endpoint into a net.Conn so a
// TLS session can run over them.
type pipeConn struct {
	in  io.ReadCloser
	out io.WriteCloser
}

func (p *pipeConn) Read(b []byte) (int, error) {
	return p.in.Read(b)
}

func (p *pipeConn) Write(b []byte) (int, error) {
	return writeFull(p.out, b)
}

// Close closes both endpoints. crypto/tls calls it only to abort a
// handshake whose context was cancelled.
func (p *pipeConn) Close() error {
	return multierr.Append(p.out.Close(), p.in.Close())
}

func (p *pipeConn) LocalAddr() net.Addr  { return pipeAddr{} }
func (p *pipeConn) RemoteAddr() net.Addr { return pipeAddr{} }

type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(time.Time) error
}

func (p *pipeConn) SetDeadline(t time.Time) error {
	return multierr.Append(p.SetReadDeadline(t), p.SetWriteDeadline(t))
}

// SetReadDeadline is forwarded when the endpoint supports deadlines
// (e.g. *os.File pipes) and ignored otherwise.
func (p *pipeConn) SetReadDeadline(t time.Time) error {
	if d, ok := p.in.(readDeadliner); ok {
		if err := d.SetReadDeadline(t); err != nil && !errors.Is(err, os.ErrNoDeadline) {
			return err
		}
	}
	return nil
}

func (p *pipeConn) SetWriteDeadline(t time.Time) error {
	if d, ok := p.out.(writeDeadliner); ok {
		if err := d.SetWriteDeadline(t); err != nil && !errors.Is(err, os.ErrNoDeadline) {
			return err
		}
	}
	return nil
}

// writeFull writes all of b, retrying interrupted writes. A write that
// makes no progress without an error fails with io.ErrShortWrite.
func writeFull(w io.Writer, b []byte) (int, error) {
	written := 0
	for written < len(b) {
		n, err := w.Write(b[written:])
		written += n
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// sameEndpoint reports whether in and out are the same object, as for a
// socket adopted as both endpoints.
func sameEndpoint(in io.ReadCloser, out io.WriteCloser) bool {
	if in == nil || out == nil {
		return false
	}
	if reflect.TypeOf(in) != reflect.TypeOf(out) || !reflect.TypeOf(in).Comparable() {
		return false
	}
	return any(in) == any(out)
}
