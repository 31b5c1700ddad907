package transport

import (
	"fmt"
	"io"
	"os"

	"github.com/peersync/peersync-go/pkg/log"
)

const (
	// StagingSize is the capacity of a channel's read staging buffer.
	StagingSize = 512

	// BypassThreshold is the request size above which an empty staging
	// buffer is skipped and the transport reads straight into the caller's
	// slice.
	BypassThreshold = 128

	// TraceLevel is the debug level at which transferred data is traced.
	TraceLevel = 3
)

// stagingBuffer batches small reads. [start,end) is unread data.
type stagingBuffer struct {
	buf        [StagingSize]byte
	start, end int
}

func (b *stagingBuffer) len() int {
	return b.end - b.start
}

// Channel provides buffered block and line I/O over a Session. It is
// obtained from Session.Channel and shares the session's lifetime.
type Channel struct {
	s     *Session
	stage stagingBuffer
}

// RawRead returns data from the staging buffer, refilling it with at most
// one transport read when it is empty. Requests larger than BypassThreshold
// read directly into dst when nothing is staged. The result may be shorter
// than dst. At the end of the stream it returns 0 and io.EOF; on a failed
// refill the buffer stays empty and the error is returned.
func (c *Channel) RawRead(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	b := &c.stage
	if b.start == b.end {
		if len(dst) > BypassThreshold {
			n, err := c.s.transportRead(dst)
			if n <= 0 && err == nil {
				err = io.ErrNoProgress
			}
			return n, err
		}

		b.start, b.end = 0, 0
		n, err := c.s.transportRead(b.buf[:])
		if n <= 0 {
			if err == nil {
				err = io.ErrNoProgress
			}
			return 0, err
		}
		// An error that came with data is reported by the next read.
		b.end = n
	}

	n := copy(dst, b.buf[b.start:b.end])
	b.start += n
	return n, nil
}

// Read fills dst, calling RawRead until len(dst) bytes arrived or a call
// returned no data. A count shorter than len(dst) means the stream ended
// or failed; err then says why.
func (c *Channel) Read(dst []byte) (int, error) {
	total := 0
	var err error
	for total < len(dst) {
		var n int
		n, err = c.RawRead(dst[total:])
		if n > 0 {
			total += n
		}
		if n <= 0 || err != nil {
			break
		}
	}

	c.trace(log.DirectionIn, dst[:total])
	if total == len(dst) {
		err = nil
	}
	return total, err
}

// Write sends all of src. On a hard error nothing is reported as written.
func (c *Channel) Write(src []byte) (int, error) {
	c.trace(log.DirectionOut, src)

	if _, err := c.s.transportWrite(src); err != nil {
		return 0, err
	}
	return len(src), nil
}

// WriteString is Write for a string.
func (c *Channel) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}

// Printf formats according to format and writes the result in full.
func (c *Channel) Printf(format string, args ...any) (int, error) {
	return c.Write([]byte(fmt.Sprintf(format, args...)))
}

// ReadLine reads one line into dst, one byte at a time, until a newline,
// len(dst)-1 bytes, or the end of the stream. The newline is consumed but
// not stored. dst is NUL terminated and the number of bytes before the
// terminator is returned. A longer line is truncated; its remainder stays
// unread.
func (c *Channel) ReadLine(dst []byte) int {
	n, _ := c.readLine(dst)
	return n
}

// ReadLineString reads a line of at most max-1 bytes like ReadLine. err is
// non-nil only when the stream ended or failed before a newline was seen.
func (c *Channel) ReadLineString(max int) (string, error) {
	if max < 1 {
		max = 1
	}
	buf := make([]byte, max)
	n, err := c.readLine(buf)
	return string(buf[:n]), err
}

func (c *Channel) readLine(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	var (
		n   int
		err error
		one [1]byte
	)
	for n < len(dst)-1 {
		var m int
		m, err = c.RawRead(one[:])
		if m <= 0 {
			if err == nil {
				err = io.ErrNoProgress
			}
			break
		}
		err = nil
		if one[0] == '\n' {
			break
		}
		dst[n] = one[0]
		n++
	}
	dst[n] = 0

	c.trace(log.DirectionIn, dst[:n])
	return n, err
}

func (c *Channel) trace(dir log.Direction, b []byte) {
	s := c.s
	if s.opts.DebugLevel < TraceLevel {
		return
	}

	w := s.opts.TraceWriter
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintln(w, log.TraceLine(dir, b))

	if s.opts.ProtocolLogger != nil {
		ev := s.event(log.CategoryData, s.dataLayer())
		ev.Direction = dir
		ev.Data = log.NewDataEvent(b)
		s.opts.ProtocolLogger.Log(ev)
	}
}
