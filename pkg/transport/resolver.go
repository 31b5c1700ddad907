package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"

	"go.uber.org/multierr"
)

// DefaultService is the port peersync listens on.
const DefaultService = "30865"

// HostLookup turns a peer name into candidate addresses for a service.
// Candidates are tried in the order returned.
type HostLookup interface {
	LookupHost(ctx context.Context, host, service string) ([]netip.AddrPort, error)
}

// SystemLookup resolves through the system resolver (DNS, hosts file).
type SystemLookup struct {
	// Resolver is the resolver to use. Nil means net.DefaultResolver.
	Resolver *net.Resolver
}

// LookupHost resolves host for both address families, preserving resolver
// order. A literal IP address resolves to itself.
func (l SystemLookup) LookupHost(ctx context.Context, host, service string) ([]netip.AddrPort, error) {
	r := l.Resolver
	if r == nil {
		r = net.DefaultResolver
	}

	port, err := r.LookupPort(ctx, "tcp", service)
	if err != nil {
		return nil, err
	}

	addrs, err := r.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}

	out := make([]netip.AddrPort, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, netip.AddrPortFrom(a.Unmap(), uint16(port)))
	}
	return out, nil
}

// ChainLookup tries each lookup in order and returns the first non-empty
// candidate list. If every lookup fails, the errors are combined.
type ChainLookup []HostLookup

// LookupHost implements HostLookup.
func (c ChainLookup) LookupHost(ctx context.Context, host, service string) ([]netip.AddrPort, error) {
	var errs error
	for _, l := range c {
		addrs, err := l.LookupHost(ctx, host, service)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if len(addrs) > 0 {
			return addrs, nil
		}
	}
	return nil, errs
}

// Resolver connects to a peer by name, trying every resolved address.
// The zero value uses SystemLookup and DefaultService.
type Resolver struct {
	// Lookup supplies candidate addresses. Nil means SystemLookup{}.
	Lookup HostLookup

	// Service is the port name or number to connect to.
	Service string

	// Dialer is used for each attempt. Nil means a zero net.Dialer.
	Dialer *net.Dialer

	// Logger for candidate attempts (default: slog.Default()).
	Logger *slog.Logger
}

// Connect resolves peer and dials the candidates in order, returning the
// first connection that succeeds. Each failed attempt is released before the
// next one starts. There is no retry: once the list is exhausted the
// per-candidate errors are returned wrapped in ErrAllCandidatesFailed.
func (r *Resolver) Connect(ctx context.Context, peer string) (net.Conn, error) {
	lookup := r.Lookup
	if lookup == nil {
		lookup = SystemLookup{}
	}
	service := r.Service
	if service == "" {
		service = DefaultService
	}
	dialer := r.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	candidates, err := lookup.LookupHost(ctx, peer, service)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnresolvable, peer, err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s: no addresses", ErrUnresolvable, peer)
	}

	var errs error
	for _, c := range candidates {
		network := "tcp6"
		if c.Addr().Is4() {
			network = "tcp4"
		}

		conn, err := dialer.DialContext(ctx, network, c.String())
		if err == nil {
			logger.Debug("connected", "peer", peer, "addr", c.String())
			return conn, nil
		}
		logger.Debug("connect attempt failed", "peer", peer, "addr", c.String(), "error", err)
		errs = multierr.Append(errs, err)
	}

	return nil, fmt.Errorf("%w: %s: %w", ErrAllCandidatesFailed, peer, errs)
}
