package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/peersync/peersync-go/pkg/response"
	"github.com/peersync/peersync-go/pkg/transport"
	"github.com/peersync/peersync-go/pkg/version"
)

// maxCommandLine bounds one line of the diagnostic protocol.
const maxCommandLine = 4096

// errTLSRequired ends a plaintext session that skipped "ssl".
var errTLSRequired = errors.New("peer did not activate TLS")

// diagServer answers the diagnostic line protocol:
//
//	ssl           switch to TLS
//	hello <name>  identify; the peer certificate is pinned under name
//	echo <text>   reply with text
//	version       report the protocol version
//	bye           end the session
type diagServer struct {
	requireTLS bool
	verifier   transport.PeerVerifier
	logger     *slog.Logger
}

// Handle is a transport.Handler.
func (d *diagServer) Handle(ctx context.Context, sess *transport.Session) {
	if err := d.Serve(ctx, sess); err != nil {
		level := slog.LevelInfo
		if transport.IsFatal(err) {
			level = slog.LevelError
		}
		d.logger.Log(ctx, level, "session ended", "conn_id", sess.ID(), "peer", sess.Peer(), "error", err)
	}
}

// Serve runs the command loop until "bye", the end of the stream, or an
// error that ends the session.
func (d *diagServer) Serve(ctx context.Context, sess *transport.Session) error {
	ch := sess.Channel()
	reply := func(c response.Code, detail string) error {
		_, err := ch.WriteString(response.Line(c, detail))
		return err
	}

	for {
		line, err := ch.ReadLineString(maxCommandLine)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch strings.ToLower(cmd) {
		case "":
			continue

		case transport.StartTLSCommand:
			if sess.TLSActive() {
				if err := reply(response.ErrPermDenied, "tls already active"); err != nil {
					return err
				}
				continue
			}
			if err := reply(response.OKActivatingSSL, ""); err != nil {
				return err
			}
			if err := sess.ActivateTLS(ctx, transport.RoleServer); err != nil {
				return err
			}

		case "hello":
			if d.requireTLS && !sess.TLSActive() {
				return multierr.Append(errTLSRequired, reply(response.ErrSSLExpected, ""))
			}
			if arg == "" {
				if err := reply(response.ErrIdentificationFailed, "missing peer name"); err != nil {
					return err
				}
				continue
			}
			sess.SetPeer(arg)
			if err := d.checkPeer(ctx, sess, arg); err != nil {
				return multierr.Append(err, reply(response.ErrIdentificationFailed, ""))
			}
			if err := reply(response.OKCmdFinished, ""); err != nil {
				return err
			}

		case "echo":
			if err := reply(response.OKCmdFinished, arg); err != nil {
				return err
			}

		case "version":
			if err := reply(response.OKCmdFinished, "peersync/"+version.Current); err != nil {
				return err
			}

		case "bye":
			return reply(response.OKCULater, "")

		default:
			if err := reply(response.ErrUnknownCommand, ""); err != nil {
				return err
			}
		}
	}
}

func (d *diagServer) checkPeer(ctx context.Context, sess *transport.Session, peer string) error {
	if d.verifier == nil {
		return nil
	}
	ok, err := d.verifier.CheckPeer(ctx, sess, peer, false)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", transport.ErrUntrustedPeer, peer)
	}
	return nil
}

// exchange sends one command line and returns the classified response.
func exchange(ch transport.LineChannel, command string) (response.Code, string, error) {
	if _, err := ch.Printf("%s\n", command); err != nil {
		return response.Error, "", err
	}
	line, err := ch.ReadLineString(maxCommandLine)
	if err != nil {
		return response.Error, line, err
	}
	return response.Parse(line), line, nil
}

// greet introduces the local node to the peer and says goodbye.
func greet(sess *transport.Session, w io.Writer) error {
	host, err := os.Hostname()
	if err != nil {
		return err
	}

	ch := sess.Channel()
	for _, command := range []string{"hello " + host, "bye"} {
		code, line, err := exchange(ch, command)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s -> %s\n", command, line)
		if !code.IsOK() {
			return fmt.Errorf("%w to %q: %q", transport.ErrUnexpectedResponse, command, line)
		}
	}
	return nil
}

// listenPort returns the TCP port the server is bound to.
func listenPort(s *transport.Server) int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}
