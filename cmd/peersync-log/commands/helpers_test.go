package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/peersync/peersync-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.trace")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

// sessionEvents is a short TLS session: open, activate, one exchange, close.
func sessionEvents() []log.Event {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	base := log.Event{
		ConnectionID: "abc12345-0000-0000-0000-000000000000",
		PeerName:     "alpha",
		RemoteAddr:   "192.0.2.1:30865",
	}

	at := func(d time.Duration, e log.Event) log.Event {
		e.Timestamp = ts.Add(d)
		e.ConnectionID = base.ConnectionID
		e.PeerName = base.PeerName
		e.RemoteAddr = base.RemoteAddr
		return e
	}

	return []log.Event{
		at(0, log.Event{
			Layer:       log.LayerSession,
			Category:    log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityConnection, NewState: "CONNECTED"},
		}),
		at(time.Millisecond, log.Event{
			Direction: log.DirectionOut,
			Layer:     log.LayerTransport,
			Category:  log.CategoryData,
			Data:      log.NewDataEvent([]byte("ssl\n")),
		}),
		at(2*time.Millisecond, log.Event{
			Layer:       log.LayerSession,
			Category:    log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityTLS, OldState: "PLAINTEXT", NewState: "ACTIVE"},
		}),
		at(3*time.Millisecond, log.Event{
			Direction: log.DirectionIn,
			Layer:     log.LayerTLS,
			Category:  log.CategoryData,
			Data:      log.NewDataEvent([]byte("OK (cmd_finished).\n")),
		}),
		at(4*time.Millisecond, log.Event{
			Layer:    log.LayerTLS,
			Category: log.CategoryError,
			Error:    &log.ErrorEventData{Layer: log.LayerTLS, Message: "bad record MAC", Fatal: true, Context: "handshake"},
		}),
	}
}
