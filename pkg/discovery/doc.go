// Package discovery finds peersync peers on the local link with mDNS/DNS-SD.
//
// Every node that serves peersync advertises one instance of
// _peersync._tcp in the local. domain, named after its host name. A peer
// name that does not resolve through DNS can then be looked up by browsing
// for an instance of the same name.
//
// # Advertising
//
// An Advertiser registers the instance when started and withdraws it when
// stopped:
//
//	adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{Port: 30865})
//	if err := adv.Start(); err != nil { ... }
//	defer adv.Stop()
//
// # Lookup
//
// Lookup implements transport.HostLookup. It is usually chained after the
// system resolver:
//
//	resolver := &transport.Resolver{
//		Lookup: transport.ChainLookup{transport.SystemLookup{}, &discovery.Lookup{}},
//	}
//
// A lookup browses for at most Window and returns the IPv4 addresses of the
// matching instance first, then its IPv6 addresses, all with the port the
// instance advertised.
package discovery
