package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/peersync/peersync-go/pkg/config"
	"github.com/peersync/peersync-go/pkg/transport"
)

// DefaultSSHPort is used when the peer name carries no port.
const DefaultSSHPort = "22"

// Errors returned by DialSSH before any connection is made.
var (
	ErrNoUser    = errors.New("ssh user is required")
	ErrNoKeyFile = errors.New("ssh key file is required")
)

// DialSSH runs cfg.Command on peer over SSH and returns a session whose
// endpoints are the remote command's stdout and stdin. Closing the session
// closes the pipes, then the SSH connection.
func DialSSH(ctx context.Context, cfg config.SSHConfig, peer string, opts transport.Options) (*transport.Session, error) {
	clientConfig, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}

	address := sshAddress(peer)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", address, err)
	}
	conn.SetDeadline(time.Time{})

	client := ssh.NewClient(clientConn, chans, reqs)

	in, out, err := startCommand(client, cfg.Command)
	if err != nil {
		client.Close()
		return nil, err
	}

	return transport.AdoptClient(in, out, peer, opts), nil
}

// startCommand starts command in a new SSH session and returns its
// stdout, which also releases the session and client on Close, and stdin.
func startCommand(client *ssh.Client, command string) (io.ReadCloser, io.WriteCloser, error) {
	if command == "" {
		command = config.DefaultSSHCmd
	}

	session, err := client.NewSession()
	if err != nil {
		return nil, nil, fmt.Errorf("ssh session: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, nil, fmt.Errorf("ssh stdin: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, nil, fmt.Errorf("ssh stdout: %w", err)
	}

	if err := session.Start(command); err != nil {
		session.Close()
		return nil, nil, fmt.Errorf("start %q: %w", command, err)
	}

	return &remoteOutput{Reader: stdout, session: session, client: client}, stdin, nil
}

// remoteOutput is the remote command's stdout. Closing it ends the SSH
// session and connection.
type remoteOutput struct {
	io.Reader
	session *ssh.Session
	client  *ssh.Client
}

func (r *remoteOutput) Close() error {
	var err error
	if cerr := r.session.Close(); cerr != nil && !errors.Is(cerr, io.EOF) {
		err = multierr.Append(err, cerr)
	}
	if cerr := r.client.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = multierr.Append(err, cerr)
	}
	return err
}

func clientConfig(cfg config.SSHConfig) (*ssh.ClientConfig, error) {
	if cfg.User == "" {
		return nil, ErrNoUser
	}

	signer, err := loadSigner(cfg.KeyFile)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := knownHostsCallback(cfg.KnownHosts)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
	}, nil
}

func loadSigner(path string) (ssh.Signer, error) {
	if path == "" {
		return nil, ErrNoKeyFile
	}

	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", path, err)
	}
	return signer, nil
}

func knownHostsCallback(path string) (ssh.HostKeyCallback, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known hosts path not set and home dir unavailable")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}
	return cb, nil
}

// sshAddress appends DefaultSSHPort unless peer already names a port.
func sshAddress(peer string) string {
	if _, _, err := net.SplitHostPort(peer); err == nil {
		return peer
	}
	return net.JoinHostPort(strings.Trim(peer, "[]"), DefaultSSHPort)
}
