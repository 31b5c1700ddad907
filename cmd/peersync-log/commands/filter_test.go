package commands

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/peersync/peersync-go/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()

	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
}

func TestFilterByConnectionID(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "conn-1", Category: log.CategoryState},
		{Timestamp: ts, ConnectionID: "conn-2", Category: log.CategoryState},
		{Timestamp: ts, ConnectionID: "conn-1", Category: log.CategoryState},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.trace")

	var buf bytes.Buffer
	if err := RunFilter(path, FilterOptions{Output: outPath, ConnID: "conn-1"}, &buf); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readAll(t, outPath)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	for _, e := range got {
		if e.ConnectionID != "conn-1" {
			t.Errorf("expected conn-1, got %s", e.ConnectionID)
		}
	}
	if !strings.Contains(buf.String(), "Filtered 2 events") {
		t.Errorf("unexpected summary: %q", buf.String())
	}
}

func TestFilterByPeerAndTime(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, PeerName: "alpha"},
		{Timestamp: ts.Add(time.Hour), PeerName: "alpha"},
		{Timestamp: ts.Add(time.Hour), PeerName: "beta"},
		{Timestamp: ts.Add(3 * time.Hour), PeerName: "alpha"},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.trace")

	opts := FilterOptions{
		Output:    outPath,
		Peer:      "alpha",
		TimeStart: "2026-01-28T10:30:00Z",
		TimeEnd:   "2026-01-28T12:00:00Z",
	}
	if err := RunFilter(path, opts, io.Discard); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readAll(t, outPath)
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(ts.Add(time.Hour)) || got[0].PeerName != "alpha" {
		t.Errorf("unexpected event: %+v", got[0])
	}
}

func TestFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.trace")

	for _, opts := range []FilterOptions{
		{Output: outPath, TimeStart: "yesterday"},
		{Output: outPath, TimeEnd: "tomorrow"},
		{Output: outPath, Layer: "wire"},
		{Output: outPath, Direction: "up"},
		{Output: outPath, Category: "snapshot"},
	} {
		if err := RunFilter(path, opts, io.Discard); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}
