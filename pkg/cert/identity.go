package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

// DefaultValidity is the lifetime of generated identities.
const DefaultValidity = 10 * 365 * 24 * time.Hour

// ErrInvalidCert is returned for a certificate that does not match its key.
var ErrInvalidCert = errors.New("invalid certificate")

// Identity is a certificate and the private key it was issued for.
type Identity struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// GenerateIdentity creates a self-signed identity for commonName, valid from
// now for validity (DefaultValidity when zero). The certificate can act as
// both TLS client and server.
func GenerateIdentity(commonName string, validity time.Duration) (*Identity, error) {
	if validity <= 0 {
		validity = DefaultValidity
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: commonName,
		},
		DNSNames:              []string{commonName},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}

	return &Identity{Certificate: cert, PrivateKey: key}, nil
}

// TLSCertificate returns the identity in the form crypto/tls uses.
func (id *Identity) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{id.Certificate.Raw},
		PrivateKey:  id.PrivateKey,
		Leaf:        id.Certificate,
	}
}

// Save writes the certificate and key to PEM files, creating parent
// directories. The key file is readable by the owner only.
func (id *Identity) Save(certFile, keyFile string) error {
	for _, p := range []string{certFile, keyFile} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFile, err)
		}
	}
	if err := WriteCertFile(certFile, id.Certificate); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFile, err)
	}
	if err := WriteKeyFile(keyFile, id.PrivateKey); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFile, err)
	}
	return nil
}

// LoadIdentity reads an identity written by Save and checks that the key
// belongs to the certificate.
func LoadIdentity(certFile, keyFile string) (*Identity, error) {
	cert, err := ReadCertFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadFile, certFile, err)
	}
	key, err := ReadKeyFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadFile, keyFile, err)
	}

	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok || !pub.Equal(&key.PublicKey) {
		return nil, fmt.Errorf("%w: key does not match certificate", ErrInvalidCert)
	}
	return &Identity{Certificate: cert, PrivateKey: key}, nil
}

// Exists reports whether both identity files are present.
func Exists(certFile, keyFile string) bool {
	for _, p := range []string{certFile, keyFile} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}
