// Package commands implements the peersync-log CLI commands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peersync/peersync-go/pkg/log"
)

// timeFormat is used for every timestamp the commands print.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// eventType names the payload carried by event.
func eventType(event log.Event) string {
	switch {
	case event.Data != nil:
		return "data"
	case event.StateChange != nil:
		return "state"
	case event.Error != nil:
		return "error"
	default:
		return "unknown"
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION LAYER peer
	ts := event.Timestamp.UTC().Format(timeFormat)
	dir := event.Direction.String()
	if event.Data == nil {
		dir = "-"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %-9s %s", ts, shortenConnID(event.ConnectionID), dir, event.Layer.String(), event.LocalRole.String())
	if event.PeerName != "" {
		fmt.Fprintf(w, " peer=%s", event.PeerName)
	}
	if event.RemoteAddr != "" {
		fmt.Fprintf(w, " addr=%s", event.RemoteAddr)
	}
	fmt.Fprintln(w)

	switch {
	case event.Data != nil:
		formatDataDetails(w, event.Direction, event.Data)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatDataDetails writes the transferred bytes as a trace line.
func formatDataDetails(w io.Writer, dir log.Direction, data *log.DataEvent) {
	fmt.Fprintf(w, "  Size: %d bytes", data.Size)
	if data.Truncated {
		fmt.Fprintf(w, " (truncated to %d)", len(data.Data))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", log.TraceLine(dir, data.Data))
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Fatal {
		fmt.Fprintln(w, "  Fatal: yes")
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// parseLayer parses a layer string (case-insensitive).
func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "tls":
		return log.LayerTLS, nil
	case "session":
		return log.LayerSession, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, tls, or session)", s)
	}
}

// parseDirection parses a direction string (case-insensitive).
func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "data":
		return log.CategoryData, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be data, state, or error)", s)
	}
}

// forEach calls fn for every event in path that matches filter.
func forEach(path string, filter log.Filter, fn func(log.Event) error) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// RunView executes the view command.
func RunView(path string, filter log.Filter, output io.Writer) error {
	return forEach(path, filter, func(event log.Event) error {
		formatEvent(output, event)
		return nil
	})
}

// RunTranscript writes the data events of path as text trace lines, the
// format peersync prints at trace level.
func RunTranscript(path string, filter log.Filter, output io.Writer) error {
	text := log.NewTextLogger(output)
	return forEach(path, filter, func(event log.Event) error {
		text.Log(event)
		return nil
	})
}
