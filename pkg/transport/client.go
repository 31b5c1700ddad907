package transport

import (
	"context"
	"fmt"

	"github.com/peersync/peersync-go/pkg/response"
)

// StartTLSCommand asks the server to switch the session to TLS.
const StartTLSCommand = "ssl"

// maxResponseLine bounds response lines read by the client.
const maxResponseLine = 4096

// ClientConfig configures a Client.
type ClientConfig struct {
	// Resolver used to connect (default: the zero Resolver).
	Resolver *Resolver

	// Options applied to every session.
	Options Options

	// StartTLS sends StartTLSCommand after connecting, expects
	// OK (activating_ssl). and activates TLS in the client role.
	StartTLS bool

	// Verifier pins the peer certificate after TLS activation (optional).
	Verifier PeerVerifier

	// FatalOnMismatch makes a pinning violation a *FatalError.
	FatalOnMismatch bool
}

// Client opens sessions to peers.
type Client struct {
	config ClientConfig
}

// NewClient creates a new client.
func NewClient(config ClientConfig) *Client {
	if config.Resolver == nil {
		config.Resolver = &Resolver{Logger: config.Options.Logger}
	}
	return &Client{config: config}
}

// Dial connects to peer and, as configured, negotiates TLS and pins the
// peer certificate. On any failure the session is closed.
func (c *Client) Dial(ctx context.Context, peer string) (*Session, error) {
	sess, err := OpenClient(ctx, c.config.Resolver, peer, c.config.Options)
	if err != nil {
		return nil, err
	}

	if err := c.Negotiate(ctx, sess, peer); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

// Negotiate runs the configured StartTLS exchange and pinning check on a
// session opened elsewhere, such as an SSH tunnel. It does nothing unless
// StartTLS is set. The session is left open on failure.
func (c *Client) Negotiate(ctx context.Context, sess *Session, peer string) error {
	if !c.config.StartTLS {
		return nil
	}

	ch := sess.Channel()
	if _, err := ch.Printf("%s\n", StartTLSCommand); err != nil {
		return fmt.Errorf("send %s: %w", StartTLSCommand, err)
	}

	line, err := ch.ReadLineString(maxResponseLine)
	if err != nil {
		return fmt.Errorf("read %s response: %w", StartTLSCommand, err)
	}
	if code := response.Parse(line); code != response.OKActivatingSSL {
		return fmt.Errorf("%w to %s: %q", ErrUnexpectedResponse, StartTLSCommand, line)
	}

	if err := sess.ActivateTLS(ctx, RoleClient); err != nil {
		return err
	}

	if c.config.Verifier == nil {
		return nil
	}
	trusted, err := c.config.Verifier.CheckPeer(ctx, sess, peer, c.config.FatalOnMismatch)
	if err != nil {
		return err
	}
	if !trusted {
		return fmt.Errorf("%w: %s", ErrUntrustedPeer, peer)
	}
	return nil
}
