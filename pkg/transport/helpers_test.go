package transport

import (
	"bytes"
	"io"
	"net"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peersync/peersync-go/pkg/cert"
)

// writeIdentity generates a self-signed identity into a temp dir and
// returns options pointing at it.
func writeIdentity(t *testing.T, name string) Options {
	t.Helper()

	dir := t.TempDir()
	certFile := filepath.Join(dir, name+"_cert.pem")
	keyFile := filepath.Join(dir, name+"_key.pem")

	id, err := cert.GenerateIdentity(name, time.Hour)
	require.NoError(t, err)
	require.NoError(t, id.Save(certFile, keyFile))

	return Options{CertFile: certFile, KeyFile: keyFile}
}

// loopbackPair returns both ends of a loopback TCP connection.
func loopbackPair(t *testing.T) (client, server net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	server, ok := <-accepted
	require.True(t, ok, "accept failed")

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

// closedPort returns a loopback port with no listener.
func closedPort(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())
	return port
}

// scriptedReader serves data in chunks and records the size of every read
// request it receives.
type scriptedReader struct {
	r        io.Reader
	requests []int
	closed   int
}

func newScriptedReader(data []byte) *scriptedReader {
	return &scriptedReader{r: bytes.NewReader(data)}
}

func (s *scriptedReader) Read(p []byte) (int, error) {
	s.requests = append(s.requests, len(p))
	return s.r.Read(p)
}

func (s *scriptedReader) Close() error {
	s.closed++
	return nil
}

// recordingWriter collects writes and counts Close calls.
type recordingWriter struct {
	bytes.Buffer
	closed int
}

func (w *recordingWriter) Close() error {
	w.closed++
	return nil
}

// interruptingWriter fails every other write with EINTR and otherwise
// accepts at most max bytes per call.
type interruptingWriter struct {
	recordingWriter
	max   int
	calls int
}

func (w *interruptingWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.calls%2 == 1 {
		return 0, syscall.EINTR
	}
	if len(p) > w.max {
		p = p[:w.max]
	}
	return w.recordingWriter.Write(p)
}
