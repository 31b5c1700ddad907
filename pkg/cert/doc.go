// Package cert creates and stores the local TLS identity of a peersync
// node: a self-signed ECDSA P-256 certificate and its private key, kept as
// two PEM files.
package cert
