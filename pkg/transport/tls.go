package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Role selects which side of the TLS handshake a session plays.
type Role int

const (
	// RoleClient initiates the handshake.
	RoleClient Role = iota
	// RoleServer answers the handshake and requires a client certificate.
	RoleServer
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}

// performanceCipherSuites lists the TLS 1.2 suites in preference order.
// TLS 1.3 suites are not configurable in crypto/tls.
var performanceCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
}

func baseTLSConfig() *tls.Config {
	return &tls.Config{
		// TLS 1.2 minimum, AEAD only
		MinVersion:   tls.VersionTLS12,
		CipherSuites: performanceCipherSuites,

		// Curve preferences for key exchange
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		// Session tickets disabled (no resumption)
		SessionTicketsDisabled: true,
	}
}

// NewServerTLSConfig creates the configuration for the answering side.
// The only trust anchor is the local certificate, and the peer must present a
// certificate. Its chain is not validated; trust is decided by pinning.
func NewServerTLSConfig(identity tls.Certificate) (*tls.Config, error) {
	if len(identity.Certificate) == 0 {
		return nil, fmt.Errorf("server certificate is required")
	}

	leaf := identity.Leaf
	if leaf == nil {
		var err error
		leaf, err = x509.ParseCertificate(identity.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("parse local certificate: %w", err)
		}
	}

	pool := x509.NewCertPool()
	pool.AddCert(leaf)

	cfg := baseTLSConfig()
	cfg.Certificates = []tls.Certificate{identity}
	cfg.ClientCAs = pool
	cfg.ClientAuth = tls.RequireAnyClientCert
	return cfg, nil
}

// NewClientTLSConfig creates the configuration for the initiating side.
// The server chain is not validated, and the local identity is offered
// regardless of the issuers the server lists as acceptable.
func NewClientTLSConfig(identity tls.Certificate) (*tls.Config, error) {
	if len(identity.Certificate) == 0 {
		return nil, fmt.Errorf("client certificate is required")
	}

	cfg := baseTLSConfig()
	cfg.Certificates = []tls.Certificate{identity}
	cfg.InsecureSkipVerify = true
	cfg.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
		return &identity, nil
	}
	return cfg, nil
}

type handshakeOutcome int

const (
	handshakeOK handshakeOutcome = iota
	handshakeWarning
	handshakeFailed
)

// classifyHandshake maps a handshake result onto success, tolerated
// warning, or failure. warnings are the warning-level alerts seen on the
// wire during a handshake that completed. Any alert that surfaces as an
// error was fatal: the connection is unusable whatever its description.
// The second result is the alert text, if any.
func classifyHandshake(err error, warnings []string) (handshakeOutcome, string) {
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "remote error" && opErr.Err != nil {
			return handshakeFailed, opErr.Err.Error()
		}
		return handshakeFailed, ""
	}
	if len(warnings) > 0 {
		return handshakeWarning, strings.Join(warnings, ", ")
	}
	return handshakeOK, ""
}
