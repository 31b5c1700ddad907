// Package log provides protocol trace logging for peersync sessions.
//
// Trace logging is separate from operational logging (slog). It captures
// the exact bytes exchanged on a session so that a line protocol conversation
// can be replayed, diffed against golden output, or inspected after the fact.
//
// # Basic Usage
//
// Sessions are configured with a Logger implementation:
//
//	// For development: human readable trace on stderr
//	opts.ProtocolLogger = log.NewTextLogger(os.Stderr)
//
//	// For later analysis: append CBOR events to a file
//	opts.ProtocolLogger, _ = log.NewFileLogger("/var/log/peersync/trace.plog")
//
//	// Both
//	opts.ProtocolLogger = log.NewMultiLogger(text, file)
//
// # Text Format
//
// Data events are rendered one per line, prefixed with the direction tag
// ("Peer" for inbound, "Local" for outbound):
//
//	Local> hello alice\n
//	Peer> OK (cmd_finished).\n
//
// Newline and carriage return are shown as \n and \r, other bytes outside
// printable ASCII as a backslash and three octal digits (\001), everything
// else verbatim.
//
// # File Format
//
// Trace files are a stream of CBOR encoded events with integer keys. The
// peersync-log tool views, filters and exports them.
package log
