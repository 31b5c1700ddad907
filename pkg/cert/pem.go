package cert

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// PEM block types.
const (
	blockCertificate = "CERTIFICATE"
	blockECKey       = "EC PRIVATE KEY"
	blockPKCS8Key    = "PRIVATE KEY"
)

// PEM and identity file errors.
var (
	ErrInvalidPEM = errors.New("invalid PEM data")
	ErrReadFile   = errors.New("failed to read file")
	ErrWriteFile  = errors.New("failed to write file")
)

// findBlock returns the first block in data whose type is one of types.
// Other blocks, such as the "EC PARAMETERS" block openssl writes ahead of a
// key, are skipped.
func findBlock(data []byte, types ...string) (*pem.Block, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, ErrInvalidPEM
		}
		for _, t := range types {
			if block.Type == t {
				return block, nil
			}
		}
	}
}

// EncodeCertPEM encodes cert as a CERTIFICATE block.
func EncodeCertPEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: blockCertificate, Bytes: cert.Raw})
}

// DecodeCertPEM decodes the first certificate in data. For a chain that is
// the leaf.
func DecodeCertPEM(data []byte) (*x509.Certificate, error) {
	block, err := findBlock(data, blockCertificate)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(block.Bytes)
}

// EncodeKeyPEM encodes key as an SEC 1 EC PRIVATE KEY block.
func EncodeKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: blockECKey, Bytes: der}), nil
}

// DecodeKeyPEM decodes an ECDSA private key in SEC 1 or PKCS #8 form.
func DecodeKeyPEM(data []byte) (*ecdsa.PrivateKey, error) {
	block, err := findBlock(data, blockECKey, blockPKCS8Key)
	if err != nil {
		return nil, err
	}
	if block.Type == blockECKey {
		return x509.ParseECPrivateKey(block.Bytes)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	ec, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an ECDSA key", ErrInvalidPEM, key)
	}
	return ec, nil
}

// WriteCertFile writes cert to path, world readable.
func WriteCertFile(path string, cert *x509.Certificate) error {
	return os.WriteFile(path, EncodeCertPEM(cert), 0644)
}

// ReadCertFile reads the first certificate in path.
func ReadCertFile(path string) (*x509.Certificate, error) {
	return readPEM(path, DecodeCertPEM)
}

// WriteKeyFile writes key to path, readable by the owner only.
func WriteKeyFile(path string, key *ecdsa.PrivateKey) error {
	data, err := EncodeKeyPEM(key)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ReadKeyFile reads the private key in path.
func ReadKeyFile(path string) (*ecdsa.PrivateKey, error) {
	return readPEM(path, DecodeKeyPEM)
}

func readPEM[T any](path string, decode func([]byte) (T, error)) (T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode(data)
}
