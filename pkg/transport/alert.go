package transport

import (
	"fmt"
	"net"
	"sync"
)

// TLS record layer values read by alertWatcher.
const (
	recordHeaderLen        = 5
	recordChangeCipherSpec = 20
	recordAlert            = 21
	alertLevelWarning      = 1
)

var alertNames = map[byte]string{
	0:   "close notify",
	10:  "unexpected message",
	20:  "bad record MAC",
	40:  "handshake failure",
	42:  "bad certificate",
	43:  "unsupported certificate",
	44:  "revoked certificate",
	45:  "expired certificate",
	46:  "unknown certificate",
	48:  "unknown certificate authority",
	70:  "protocol version not supported",
	80:  "internal error",
	90:  "user canceled",
	100: "no renegotiation",
	112: "unrecognized name",
}

func alertName(desc byte) string {
	if name, ok := alertNames[desc]; ok {
		return name
	}
	return fmt.Sprintf("alert(%d)", desc)
}

// alertWatcher follows the TLS record framing of the bytes read during a
// handshake and records plaintext alerts sent at warning level. crypto/tls
// skips those records without reporting them. Records after a
// ChangeCipherSpec are encrypted and not inspected.
type alertWatcher struct {
	net.Conn

	mu        sync.Mutex
	stopped   bool
	encrypted bool
	warnings  []string

	// Framing state of the record being read.
	header    [recordHeaderLen]byte
	headerN   int
	recType   byte
	recLen    int
	bodyN     int
	alertBody [2]byte
}

func (w *alertWatcher) Read(b []byte) (int, error) {
	n, err := w.Conn.Read(b)
	if n > 0 {
		w.scan(b[:n])
	}
	return n, err
}

// stop ends inspection, e.g. once the handshake returned.
func (w *alertWatcher) stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
}

// Warnings returns the descriptions of warning alerts seen so far.
func (w *alertWatcher) Warnings() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.warnings...)
}

func (w *alertWatcher) scan(p []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for len(p) > 0 && !w.stopped && !w.encrypted {
		if w.headerN < recordHeaderLen {
			k := copy(w.header[w.headerN:], p)
			w.headerN += k
			p = p[k:]
			if w.headerN == recordHeaderLen {
				w.recType = w.header[0]
				w.recLen = int(w.header[3])<<8 | int(w.header[4])
				w.bodyN = 0
				w.endRecordIfComplete()
			}
			continue
		}

		k := w.recLen - w.bodyN
		if k > len(p) {
			k = len(p)
		}
		// A plaintext alert is exactly two bytes: level, description.
		if w.recType == recordAlert && w.recLen == len(w.alertBody) {
			copy(w.alertBody[w.bodyN:], p[:k])
		}
		w.bodyN += k
		p = p[k:]
		w.endRecordIfComplete()
	}
}

func (w *alertWatcher) endRecordIfComplete() {
	if w.bodyN < w.recLen {
		return
	}
	switch w.recType {
	case recordChangeCipherSpec:
		w.encrypted = true
	case recordAlert:
		if w.recLen == len(w.alertBody) && w.alertBody[0] == alertLevelWarning {
			w.warnings = append(w.warnings, alertName(w.alertBody[1]))
		}
	}
	w.headerN = 0
}
