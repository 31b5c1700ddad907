package log

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTrace(t *testing.T, events ...Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.ptrace")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, ev := range events {
		logger.Log(ev)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, ev)
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	path := writeTrace(t,
		Event{Timestamp: base, ConnectionID: "a", PeerName: "alpha", Direction: DirectionOut, Layer: LayerTransport, Category: CategoryData},
		Event{Timestamp: base.Add(time.Second), ConnectionID: "a", PeerName: "alpha", Direction: DirectionIn, Layer: LayerTLS, Category: CategoryData},
		Event{Timestamp: base.Add(2 * time.Second), ConnectionID: "b", PeerName: "beta", Layer: LayerSession, Category: CategoryState},
		Event{Timestamp: base.Add(3 * time.Second), ConnectionID: "b", PeerName: "beta", Layer: LayerSession, Category: CategoryError},
	)

	in := DirectionIn
	tlsLayer := LayerTLS
	state := CategoryState
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"none", Filter{}, 4},
		{"connection", Filter{ConnectionID: "a"}, 2},
		{"peer", Filter{PeerName: "beta"}, 2},
		{"direction", Filter{Direction: &in}, 1},
		{"layer", Filter{Layer: &tlsLayer}, 1},
		{"category", Filter{Category: &state}, 1},
		{"time window", Filter{TimeStart: &start, TimeEnd: &end}, 2},
		{"no match", Filter{ConnectionID: "zzz"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer r.Close()

			if got := len(readAll(t, r)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderTruncatedTail(t *testing.T) {
	path := writeTrace(t,
		Event{ConnectionID: "a", Data: NewDataEvent([]byte("first"))},
		Event{ConnectionID: "a", Data: NewDataEvent([]byte("second"))},
	)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-3], 0600); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	if got := len(readAll(t, r)); got != 1 {
		t.Errorf("got %d events, want 1", got)
	}
}

func TestNewReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
