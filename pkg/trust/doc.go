// Package trust pins peer certificates on first use.
//
// The first time a peer completes a TLS handshake, the fingerprint of its
// leaf certificate is stored under the peer's name. Later sessions are
// trusted only if the peer presents the same certificate. The store is a
// small get/put interface with memory, JSON file and SQLite
// implementations.
package trust
