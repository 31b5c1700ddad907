package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"

	"github.com/peersync/peersync-go/pkg/transport"
)

// console sends typed lines to the peer and prints the responses.
type console struct {
	sess   *transport.Session
	logger *slog.Logger
	rl     *readline.Instance
}

func newConsole(sess *transport.Session, logger *slog.Logger) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          sess.Peer() + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "bye",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &console{sess: sess, logger: logger, rl: rl}, nil
}

// Run reads commands until "bye", "quit", end of input, or ctx is done.
func (c *console) Run(ctx context.Context) error {
	defer c.rl.Close()

	out := c.rl.Stdout()
	fmt.Fprintln(out, `Type protocol commands ("help" for the list, "quit" to leave).`)

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				line = "bye"
			} else {
				return err
			}
		}

		input := strings.TrimSpace(line)
		switch strings.ToLower(input) {
		case "":
			continue
		case "help", "?":
			c.printHelp()
			continue
		case "quit", "exit", "q":
			input = "bye"
		}

		code, resp, err := exchange(c.sess.Channel(), input)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s  [%s]\n", resp, codeClass(code.IsOK()))

		if strings.EqualFold(input, "bye") {
			return nil
		}
		if strings.EqualFold(input, transport.StartTLSCommand) && code.IsOK() {
			if err := c.sess.ActivateTLS(ctx, transport.RoleClient); err != nil {
				return err
			}
			fmt.Fprintln(out, "TLS active")
		}
	}
}

func codeClass(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func (c *console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Commands:
  ssl            Switch the session to TLS
  hello <name>   Identify this node
  echo <text>    Ask the peer to repeat text
  version        Ask for the peer's protocol version
  bye            End the session
  quit           Same as bye`)
}
