package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/peersync/peersync-go/pkg/log"
)

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

func TestChannelRoundTrip(t *testing.T) {
	sizes := []int{0, 1, StagingSize - 1, StagingSize, StagingSize + 1, 2 * StagingSize, 5*StagingSize + 17, 64 * StagingSize}

	for _, n := range sizes {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			c, s := loopbackPair(t)
			writer := AdoptConn(c, Options{})
			reader := AdoptConn(s, Options{})

			want := pattern(n)
			var g errgroup.Group
			g.Go(func() error {
				written, err := writer.Channel().Write(want)
				if err != nil {
					return err
				}
				if written != n {
					return fmt.Errorf("wrote %d, want %d", written, n)
				}
				return nil
			})

			got := make([]byte, n)
			read, err := reader.Channel().Read(got)
			require.NoError(t, err)
			require.NoError(t, g.Wait())

			assert.Equal(t, n, read)
			assert.True(t, bytes.Equal(want, got), "payload differs")
		})
	}
}

func TestChannelSmallReadsAcrossStaging(t *testing.T) {
	c, s := loopbackPair(t)
	writer := AdoptConn(c, Options{})
	reader := AdoptConn(s, Options{})

	want := pattern(3*StagingSize + 5)
	var g errgroup.Group
	g.Go(func() error {
		_, err := writer.Channel().Write(want)
		return err
	})

	// Reads at or below the bypass threshold always go through staging.
	got := make([]byte, 0, len(want))
	chunk := make([]byte, 37)
	for len(got) < len(want) {
		n, err := reader.Channel().Read(chunk[:min(len(chunk), len(want)-len(got))])
		require.NoError(t, err)
		got = append(got, chunk[:n]...)
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, want, got)
}

func TestRawReadStagesSmallRequests(t *testing.T) {
	src := newScriptedReader(pattern(2000))
	sess := Adopt(src, &recordingWriter{}, Options{})
	ch := sess.Channel()

	buf := make([]byte, 600)

	// Small request on an empty buffer: one refill of StagingSize.
	n, err := ch.RawRead(buf[:10])
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, []int{StagingSize}, src.requests)

	// Large request while data is staged: served from the buffer only.
	n, err = ch.RawRead(buf)
	require.NoError(t, err)
	assert.Equal(t, StagingSize-10, n)
	assert.Len(t, src.requests, 1)

	// Large request on an empty buffer: bypasses staging.
	n, err = ch.RawRead(buf)
	require.NoError(t, err)
	assert.Equal(t, 600, n)
	assert.Equal(t, []int{StagingSize, 600}, src.requests)

	// Exactly at the threshold still stages.
	n, err = ch.RawRead(buf[:BypassThreshold])
	require.NoError(t, err)
	assert.Equal(t, BypassThreshold, n)
	assert.Equal(t, []int{StagingSize, 600, StagingSize}, src.requests)
}

func TestRawReadEndOfStream(t *testing.T) {
	sess := Adopt(newScriptedReader([]byte("ab")), &recordingWriter{}, Options{})
	ch := sess.Channel()

	buf := make([]byte, 8)
	n, err := ch.RawRead(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = ch.RawRead(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestRawReadRefillFailureLeavesBufferEmpty(t *testing.T) {
	boom := errors.New("boom")
	sess := Adopt(&failingReader{err: boom}, &recordingWriter{}, Options{})
	ch := sess.Channel()

	n, err := ch.RawRead(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, ch.stage.len())
}

func TestReadShortCountAtEndOfStream(t *testing.T) {
	sess := Adopt(newScriptedReader([]byte("hello")), &recordingWriter{}, Options{})

	buf := make([]byte, 10)
	n, err := sess.Channel().Read(buf)
	assert.Equal(t, 5, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestWriteRetriesInterruptedWrites(t *testing.T) {
	out := &interruptingWriter{max: 3}
	sess := Adopt(newScriptedReader(nil), out, Options{})

	n, err := sess.Channel().Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, "hello world", out.String())
	assert.Greater(t, out.calls, 4)
}

// stallingWriter accepts up to max bytes and then reports (0, nil).
type stallingWriter struct {
	recordingWriter
	max int
}

func (w *stallingWriter) Write(p []byte) (int, error) {
	room := w.max - w.Len()
	if len(p) > room {
		p = p[:room]
	}
	return w.recordingWriter.Write(p)
}

func TestWriteFullStalledWriter(t *testing.T) {
	out := &stallingWriter{max: 2}

	n, err := writeFull(out, []byte("hello"))
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, 2, n)
	assert.Equal(t, "he", out.String())

	sess := Adopt(newScriptedReader(nil), &stallingWriter{}, Options{})
	_, err = sess.Channel().Write([]byte("x"))
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestWriteHardErrorReportsNothingWritten(t *testing.T) {
	c, s := loopbackPair(t)
	sess := AdoptConn(c, Options{})
	require.NoError(t, s.Close())
	require.NoError(t, c.(*net.TCPConn).CloseWrite())

	n, err := sess.Channel().Write([]byte("x"))
	assert.Error(t, err)
	assert.Equal(t, 0, n)
}

func TestPrintf(t *testing.T) {
	out := &recordingWriter{}
	sess := Adopt(newScriptedReader(nil), out, Options{})

	long := strings.Repeat("z", 3*StagingSize)
	n, err := sess.Channel().Printf("%s %d %s\n", "GET", 42, long)
	require.NoError(t, err)

	want := "GET 42 " + long + "\n"
	assert.Equal(t, len(want), n)
	assert.Equal(t, want, out.String())
}

func TestReadLine(t *testing.T) {
	sess := Adopt(newScriptedReader([]byte("hello\nworld\r\n\nlast")), &recordingWriter{}, Options{})
	ch := sess.Channel()
	dst := make([]byte, 64)

	n := ch.ReadLine(dst)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(dst[:n]))
	assert.Equal(t, byte(0), dst[n])

	n = ch.ReadLine(dst)
	assert.Equal(t, "world\r", string(dst[:n]))

	n = ch.ReadLine(dst)
	assert.Equal(t, 0, n)
	assert.Equal(t, byte(0), dst[0])

	n = ch.ReadLine(dst)
	assert.Equal(t, "last", string(dst[:n]))
	assert.Equal(t, byte(0), dst[n])

	assert.Equal(t, 0, ch.ReadLine(dst))
}

func TestReadLineTruncates(t *testing.T) {
	sess := Adopt(newScriptedReader([]byte("abcdefg\nxy\n")), &recordingWriter{}, Options{})
	ch := sess.Channel()

	// Guard bytes after the destination must stay untouched.
	backing := []byte{'?', '?', '?', '?', '#', '#'}
	dst := backing[:4]

	n := ch.ReadLine(dst)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc\x00", string(dst))
	assert.Equal(t, "##", string(backing[4:]))

	// The remainder of the long line is read next.
	n = ch.ReadLine(dst)
	assert.Equal(t, "def", string(dst[:n]))
	n = ch.ReadLine(dst)
	assert.Equal(t, "g", string(dst[:n]))
	n = ch.ReadLine(dst)
	assert.Equal(t, "xy", string(dst[:n]))
}

func TestReadLineExactCapacity(t *testing.T) {
	sess := Adopt(newScriptedReader([]byte("abc\n")), &recordingWriter{}, Options{})
	ch := sess.Channel()

	// Capacity 4 holds "abc" and the terminator; the newline stays unread.
	dst := make([]byte, 4)
	assert.Equal(t, 3, ch.ReadLine(dst))
	assert.Equal(t, 0, ch.ReadLine(dst))
}

func TestReadLineDegenerateCapacity(t *testing.T) {
	sess := Adopt(newScriptedReader([]byte("abc\n")), &recordingWriter{}, Options{})
	ch := sess.Channel()

	assert.Equal(t, 0, ch.ReadLine(nil))

	one := []byte{'x'}
	assert.Equal(t, 0, ch.ReadLine(one))
	assert.Equal(t, byte(0), one[0])
}

func TestReadLineString(t *testing.T) {
	sess := Adopt(newScriptedReader([]byte("OK (cmd_finished).\npartial")), &recordingWriter{}, Options{})
	ch := sess.Channel()

	line, err := ch.ReadLineString(128)
	require.NoError(t, err)
	assert.Equal(t, "OK (cmd_finished).", line)

	line, err = ch.ReadLineString(128)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "partial", line)
}

func TestTraceEscaping(t *testing.T) {
	var trace bytes.Buffer
	out := &recordingWriter{}
	sess := Adopt(newScriptedReader([]byte("x\x01\r\n")), out, Options{
		DebugLevel:  TraceLevel,
		TraceWriter: &trace,
	})
	ch := sess.Channel()

	_, err := ch.Write([]byte("a\nb\rc\x01"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = ch.Read(buf)
	require.NoError(t, err)

	assert.Equal(t, "Local> a\\nb\\rc\\001\nPeer> x\\001\\r\\n\n", trace.String())
}

func TestTraceDisabledBelowLevel(t *testing.T) {
	var trace bytes.Buffer
	sess := Adopt(newScriptedReader(nil), &recordingWriter{}, Options{
		DebugLevel:  TraceLevel - 1,
		TraceWriter: &trace,
	})

	_, err := sess.Channel().Write([]byte("quiet\n"))
	require.NoError(t, err)
	assert.Empty(t, trace.String())
}

type captureLogger struct {
	events []log.Event
}

func (c *captureLogger) Log(ev log.Event) {
	c.events = append(c.events, ev)
}

func TestTraceProtocolEvents(t *testing.T) {
	capture := &captureLogger{}
	sess := Adopt(newScriptedReader([]byte("pong\n")), &recordingWriter{}, Options{
		DebugLevel:     TraceLevel,
		TraceWriter:    io.Discard,
		ProtocolLogger: capture,
	})
	sess.SetPeer("alpha")

	_, err := sess.Channel().Printf("ping\n")
	require.NoError(t, err)
	assert.Equal(t, 4, sess.Channel().ReadLine(make([]byte, 16)))

	var data []log.Event
	for _, ev := range capture.events {
		if ev.Category == log.CategoryData {
			data = append(data, ev)
		}
	}
	require.Len(t, data, 2)

	assert.Equal(t, log.DirectionOut, data[0].Direction)
	assert.Equal(t, "ping\n", string(data[0].Data.Data))
	assert.Equal(t, log.DirectionIn, data[1].Direction)
	assert.Equal(t, "pong", string(data[1].Data.Data))
	for _, ev := range data {
		assert.Equal(t, sess.ID(), ev.ConnectionID)
		assert.Equal(t, "alpha", ev.PeerName)
		assert.Equal(t, log.LayerTransport, ev.Layer)
	}
}

type failingReader struct {
	err error
}

func (f *failingReader) Read([]byte) (int, error) { return 0, f.err }
func (f *failingReader) Close() error             { return nil }
