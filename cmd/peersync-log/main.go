// Command peersync-log views and analyzes peersync trace files.
//
// Trace files are written by peersync when trace_file is set in the
// configuration. Each record is one CBOR encoded event.
//
// Usage:
//
//	peersync-log <command> [flags] <file.trace>
//
// Commands:
//
//	view     View trace file in human-readable format
//	export   Export trace file to JSON Lines or CSV
//	filter   Filter trace file and write to new file
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View all events
//	peersync-log view node.trace
//
//	# View only data received from peers
//	peersync-log view -category data -direction in node.trace
//
//	# Print the conversation as Peer>/Local> lines
//	peersync-log view -text -peer alpha node.trace
//
//	# Export to JSONL
//	peersync-log export -format jsonl node.trace
//
//	# Keep one peer's sessions
//	peersync-log filter -peer alpha -o alpha.trace node.trace
//
//	# Show statistics
//	peersync-log stats node.trace
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/peersync/peersync-go/cmd/peersync-log/commands"
)

const usage = `peersync-log - peersync trace file analyzer

Usage:
  peersync-log <command> [flags] <file.trace>

Commands:
  view     View trace file in human-readable format
  export   Export trace file to JSON Lines or CSV
  filter   Filter trace file and write to new file
  stats    Show statistics about the trace file

Use "peersync-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func newFlagSet(name, synopsis, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "peersync-log %s - %s\n\nUsage:\n  peersync-log %s %s\n\nFlags:\n", name, synopsis, name, args)
		fs.PrintDefaults()
	}
	return fs
}

// tracePath returns the single positional argument or exits.
func tracePath(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) {
	fs := newFlagSet("view", "View trace file in human-readable format", "[flags] <file.trace>")
	opts := commands.FilterOptions{}
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, tls, session)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (data, state, error)")
	fs.StringVar(&opts.Peer, "peer", "", "Filter by peer name")
	text := fs.Bool("text", false, "Print only the data transcript (Peer>/Local> lines)")
	fs.Parse(args)

	path := tracePath(fs)

	filter, err := opts.Build()
	if err != nil {
		fail(err)
	}

	run := commands.RunView
	if *text {
		run = commands.RunTranscript
	}
	if err := run(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export trace file to JSON Lines or CSV", "[flags] <file.trace>")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	fs.Parse(args)

	path := tracePath(fs)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter trace file and write to new file", "[flags] -o <out.trace> <file.trace>")
	opts := commands.FilterOptions{}
	fs.StringVar(&opts.Output, "o", "", "Output file (required)")
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.Peer, "peer", "", "Filter by peer name")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, tls, session)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (data, state, error)")
	fs.Parse(args)

	path := tracePath(fs)

	if opts.Output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunFilter(path, opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the trace file", "<file.trace>")
	fs.Parse(args)

	path := tracePath(fs)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
