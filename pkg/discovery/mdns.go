package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/peersync/peersync-go/pkg/version"
)

const (
	// ServiceType is the DNS-SD service type peersync nodes advertise.
	ServiceType = "_peersync._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is advertised when no port is configured.
	DefaultPort = 30865

	// DefaultWindow is how long a Lookup browses for a peer.
	DefaultWindow = 2 * time.Second

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63
)

// Errors returned by the package.
var (
	ErrNotFound       = errors.New("peer not found")
	ErrAlreadyStarted = errors.New("advertiser already started")
)

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// Instance is the advertised instance name. Default: the host name.
	Instance string

	// Port is the TCP port peersync listens on. Default: DefaultPort.
	Port int

	// Interface restricts advertising to one network interface.
	// Empty means all interfaces.
	Interface string

	// TTL of the advertised records. Zero uses the zeroconf default.
	TTL time.Duration

	// Logger (default: slog.Default()).
	Logger *slog.Logger
}

// Advertiser announces the local node over mDNS.
type Advertiser struct {
	config AdvertiserConfig
	logger *slog.Logger

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates a new advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Advertiser{config: config, logger: logger}
}

// Instance returns the instance name Start registers.
func (a *Advertiser) Instance() (string, error) {
	name := a.config.Instance
	if name == "" {
		host, err := os.Hostname()
		if err != nil {
			return "", fmt.Errorf("host name: %w", err)
		}
		name = host
	}
	return instanceName(name), nil
}

// Start registers the service.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return ErrAlreadyStarted
	}

	instance, err := a.Instance()
	if err != nil {
		return err
	}

	port := a.config.Port
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		instance,
		ServiceType,
		Domain,
		port,
		[]string{version.TXTRecord()},
		interfaces(a.config.Interface),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", ServiceType, err)
	}

	a.server = server
	a.logger.Info("advertising", "instance", instance, "port", port)
	return nil
}

// Stop withdraws the service. Stopping a stopped advertiser is a no-op.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// Running reports whether the service is registered.
func (a *Advertiser) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

type browseFunc func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

func zeroconfBrowse(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error {
	return zeroconf.Browse(ctx, service, domain, entries, removed, opts...)
}

// Lookup resolves peer names by browsing for their advertised instance.
// The zero value is ready to use.
type Lookup struct {
	// Window bounds each lookup. Default: DefaultWindow.
	Window time.Duration

	// Interface restricts browsing to one network interface.
	Interface string

	browse browseFunc
}

// LookupHost browses for an instance named host and returns its addresses,
// IPv4 first. The service argument is ignored: the advertised port is used.
// Instances advertising an incompatible protocol version are skipped.
// ErrNotFound is returned when no instance answered within the window.
func (l *Lookup) LookupHost(ctx context.Context, host, _ string) ([]netip.AddrPort, error) {
	window := l.Window
	if window <= 0 {
		window = DefaultWindow
	}
	browse := l.browse
	if browse == nil {
		browse = zeroconfBrowse
	}

	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	var opts []zeroconf.ClientOption
	if ifaces := interfaces(l.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	browseErr := make(chan error, 1)

	go func() {
		browseErr <- browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	want := instanceName(host)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, host)
			}
			if !strings.EqualFold(unescapeInstance(entry.Instance), want) {
				continue
			}
			if !version.CompatibleTXT(entry.Text) {
				continue
			}
			if addrs := entryAddrs(entry); len(addrs) > 0 {
				return addrs, nil
			}

		case <-removed:

		case err := <-browseErr:
			if err != nil {
				return nil, fmt.Errorf("browse %s: %w", ServiceType, err)
			}
			// Browse may return at once and keep delivering in the
			// background; keep waiting for entries.
			browseErr = nil

		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrNotFound, host)
		}
	}
}

// entryAddrs converts the addresses of entry to candidates, IPv4 first.
func entryAddrs(entry *zeroconf.ServiceEntry) []netip.AddrPort {
	if entry.Port <= 0 || entry.Port > 65535 {
		return nil
	}
	port := uint16(entry.Port)

	out := make([]netip.AddrPort, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	seen := make(map[netip.Addr]bool)
	add := func(ips []net.IP) {
		for _, ip := range ips {
			a, ok := netip.AddrFromSlice(ip)
			if !ok {
				continue
			}
			a = a.Unmap()
			if seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, netip.AddrPortFrom(a, port))
		}
	}
	add(entry.AddrIPv4)
	add(entry.AddrIPv6)
	return out
}

// instanceName trims name to a single DNS label.
func instanceName(name string) string {
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// unescapeInstance removes DNS-SD escaping (\. and \032 style) from an
// instance name as received from the wire.
func unescapeInstance(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		if i+3 < len(s) {
			if n, err := strconv.Atoi(s[i+1 : i+4]); err == nil && n < 256 {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		i++
		b.WriteByte(s[i])
	}
	return b.String()
}

// interfaces returns the named interface, or nil for all interfaces.
func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}
