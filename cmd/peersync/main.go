// Command peersync runs a peersync node: it serves the diagnostic line
// protocol, connects to peers directly or through SSH, and manages the
// local TLS identity.
//
// Usage:
//
//	peersync [flags]
//
// Flags:
//
//	-config string    Configuration file path (default "/etc/peersync/peersync.yaml")
//	-d int            Debug level; 3 and above traces session data
//	-tls              Require TLS: servers expect "ssl", clients send it
//	-server           Listen for peers
//	-listen string    Listen address (default ":<port>")
//	-stdio            Serve one session on stdin/stdout
//	-connect string   Connect to a peer
//	-ssh              Reach the peer through SSH instead of TCP
//	-gen-identity     Create the TLS identity and exit
//	-interactive      Send typed commands to the peer
//	-version          Print the protocol version and exit
//
// Examples:
//
//	# Create the identity, then serve with TLS required
//	peersync -gen-identity
//	peersync -server -tls
//
//	# Talk to a peer interactively
//	peersync -connect alpha -tls -interactive
//
//	# Same, through SSH; the remote runs "peersync -stdio"
//	peersync -connect alpha -ssh -tls
//
// A fatal error (unusable identity, failed handshake, pinned certificate
// mismatch) exits with status 1. Other failures exit with status 2.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/peersync/peersync-go/pkg/cert"
	"github.com/peersync/peersync-go/pkg/config"
	"github.com/peersync/peersync-go/pkg/discovery"
	plog "github.com/peersync/peersync-go/pkg/log"
	"github.com/peersync/peersync-go/pkg/transport"
	"github.com/peersync/peersync-go/pkg/trust"
	"github.com/peersync/peersync-go/pkg/tunnel"
	"github.com/peersync/peersync-go/pkg/version"
)

// Flags holds the command line.
type Flags struct {
	ConfigFile  string
	DebugLevel  int
	TLS         bool
	Server      bool
	Listen      string
	Stdio       bool
	Connect     string
	SSH         bool
	GenIdentity bool
	Interactive bool
	Version     bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", config.DefaultPath, "Configuration file path")
	flag.IntVar(&flags.DebugLevel, "d", -1, "Debug level (overrides debug_level); 3 and above traces session data")
	flag.BoolVar(&flags.TLS, "tls", false, "Require TLS: servers expect \"ssl\", clients send it")
	flag.BoolVar(&flags.Server, "server", false, "Listen for peers")
	flag.StringVar(&flags.Listen, "listen", "", "Listen address (default \":<port>\")")
	flag.BoolVar(&flags.Stdio, "stdio", false, "Serve one session on stdin/stdout")
	flag.StringVar(&flags.Connect, "connect", "", "Connect to a peer")
	flag.BoolVar(&flags.SSH, "ssh", false, "Reach the peer through SSH instead of TCP")
	flag.BoolVar(&flags.GenIdentity, "gen-identity", false, "Create the TLS identity and exit")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Send typed commands to the peer")
	flag.BoolVar(&flags.Version, "version", false, "Print the protocol version and exit")
}

func main() {
	flag.Parse()

	if flags.Version {
		fmt.Printf("peersync protocol %s\n", version.Current)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, flags, os.Stderr)
	stop()

	if err != nil {
		slog.Error("peersync failed", "error", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case transport.IsFatal(err):
		return 1
	default:
		return 2
	}
}

// loadConfig reads the configuration file. The default path may be
// missing, in which case the built-in defaults apply.
func loadConfig(f Flags) (*config.Config, error) {
	cfg, err := config.Load(f.ConfigFile)
	if err != nil {
		if f.ConfigFile == config.DefaultPath && errors.Is(err, fs.ErrNotExist) {
			cfg = config.Default()
		} else {
			return nil, err
		}
	}
	if f.DebugLevel >= 0 {
		cfg.DebugLevel = f.DebugLevel
	}
	return cfg, nil
}

// node bundles what every mode needs.
type node struct {
	cfg      *config.Config
	flags    Flags
	logger   *slog.Logger
	opts     transport.Options
	verifier *trust.Verifier
	closers  []io.Closer
}

func (n *node) Close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i].Close(); err != nil {
			n.logger.Debug("close failed", "error", err)
		}
	}
}

func run(ctx context.Context, f Flags, stderr io.Writer) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	logger := newLogger(stderr, cfg.DebugLevel)
	slog.SetDefault(logger)

	if f.GenIdentity {
		return generateIdentity(cfg, logger)
	}

	n, err := newNode(ctx, cfg, f, logger, stderr)
	if err != nil {
		return err
	}
	defer n.Close()

	switch {
	case f.Stdio:
		return n.serveStdio(ctx)
	case f.Server:
		return n.serve(ctx)
	case f.Connect != "":
		return n.connect(ctx, f.Connect)
	default:
		return fmt.Errorf("nothing to do: use -server, -stdio, -connect or -gen-identity")
	}
}

func newLogger(w io.Writer, debugLevel int) *slog.Logger {
	level := slog.LevelInfo
	if debugLevel > 0 {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newNode(ctx context.Context, cfg *config.Config, f Flags, logger *slog.Logger, traceWriter io.Writer) (*node, error) {
	n := &node{cfg: cfg, flags: f, logger: logger}

	protocolLogger, err := n.protocolLogger()
	if err != nil {
		return nil, err
	}

	n.opts = transport.Options{
		CertFile:       cfg.TLS.CertFile,
		KeyFile:        cfg.TLS.KeyFile,
		DebugLevel:     cfg.DebugLevel,
		TraceWriter:    traceWriter,
		Logger:         logger,
		ProtocolLogger: protocolLogger,
	}

	store, err := trust.Open(ctx, cfg.TrustStore)
	if err != nil {
		n.Close()
		return nil, fmt.Errorf("open trust store: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		n.closers = append(n.closers, c)
	}
	n.verifier = trust.NewVerifier(store, logger)

	return n, nil
}

// protocolLogger combines the trace file with slog output at the highest
// debug levels. It returns nil when neither is enabled.
func (n *node) protocolLogger() (plog.Logger, error) {
	var loggers []plog.Logger

	if n.cfg.TraceFile != "" {
		fl, err := plog.NewFileLogger(n.cfg.TraceFile)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		n.closers = append(n.closers, fl)
		loggers = append(loggers, fl)
	}
	if n.cfg.DebugLevel > transport.TraceLevel {
		loggers = append(loggers, plog.NewSlogAdapter(n.logger))
	}

	switch len(loggers) {
	case 0:
		return nil, nil
	case 1:
		return loggers[0], nil
	default:
		return plog.NewMultiLogger(loggers...), nil
	}
}

// resolver builds the name resolution chain selected in the configuration.
func (n *node) resolver() *transport.Resolver {
	mdns := &discovery.Lookup{Interface: n.cfg.MDNS.Interface}

	var lookup transport.HostLookup
	switch n.cfg.Resolver {
	case config.ResolverMDNS:
		lookup = mdns
	case config.ResolverDNSMDNS:
		lookup = transport.ChainLookup{transport.SystemLookup{}, mdns}
	default:
		lookup = transport.SystemLookup{}
	}

	return &transport.Resolver{
		Lookup:  lookup,
		Service: n.cfg.Port,
		Logger:  n.logger,
	}
}

func (n *node) client() *transport.Client {
	return transport.NewClient(transport.ClientConfig{
		Resolver:        n.resolver(),
		Options:         n.opts,
		StartTLS:        n.flags.TLS,
		Verifier:        n.verifier,
		FatalOnMismatch: true,
	})
}

func (n *node) diagnostics() *diagServer {
	return &diagServer{
		requireTLS: n.flags.TLS,
		verifier:   n.verifier,
		logger:     n.logger,
	}
}

func (n *node) serve(ctx context.Context) error {
	listen := n.flags.Listen
	if listen == "" {
		listen = ":" + n.cfg.Port
	}

	diag := n.diagnostics()
	server, err := transport.NewServer(transport.ServerConfig{
		Address: listen,
		Options: n.opts,
		Handler: diag.Handle,
		Logger:  n.logger,
	})
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer server.Stop()

	if n.cfg.UsesMDNS() {
		adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{
			Port:      listenPort(server),
			Interface: n.cfg.MDNS.Interface,
			Logger:    n.logger,
		})
		if err := adv.Start(); err != nil {
			n.logger.Warn("mDNS advertising unavailable", "error", err)
		} else {
			defer adv.Stop()
		}
	}

	<-ctx.Done()
	n.logger.Info("shutting down")
	return nil
}

func (n *node) serveStdio(ctx context.Context) error {
	sess := transport.Adopt(os.Stdin, os.Stdout, n.opts)
	defer sess.Close()
	return n.diagnostics().Serve(ctx, sess)
}

func (n *node) connect(ctx context.Context, peer string) error {
	client := n.client()

	var sess *transport.Session
	if n.flags.SSH {
		s, err := tunnel.DialSSH(ctx, n.cfg.SSH, peer, n.opts)
		if err != nil {
			return err
		}
		if err := client.Negotiate(ctx, s, peer); err != nil {
			s.Close()
			return err
		}
		sess = s
	} else {
		s, err := client.Dial(ctx, peer)
		if err != nil {
			return err
		}
		sess = s
	}
	defer sess.Close()

	if n.flags.Interactive {
		console, err := newConsole(sess, n.logger)
		if err != nil {
			return err
		}
		return console.Run(ctx)
	}
	return greet(sess, os.Stdout)
}

func generateIdentity(cfg *config.Config, logger *slog.Logger) error {
	if cert.Exists(cfg.TLS.CertFile, cfg.TLS.KeyFile) {
		return fmt.Errorf("identity already exists: %s", cfg.TLS.CertFile)
	}

	host, err := os.Hostname()
	if err != nil {
		return err
	}
	id, err := cert.GenerateIdentity(host, cert.DefaultValidity)
	if err != nil {
		return err
	}
	if err := id.Save(cfg.TLS.CertFile, cfg.TLS.KeyFile); err != nil {
		return err
	}

	logger.Info("identity created",
		"cert_file", cfg.TLS.CertFile,
		"key_file", cfg.TLS.KeyFile,
		"fingerprint", trust.Fingerprint(id.Certificate.Raw))
	return nil
}
