// Package transport provides the peersync connection layer.
//
// A Session owns the two endpoints of one byte-stream connection to a peer.
// Sessions are opened as a client through a Resolver, or adopt endpoints
// that were accepted elsewhere (a listening socket, the stdio of a tunneled
// process). A session can be upgraded in place to TLS and exposes a Channel
// for buffered block and line I/O.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Line-oriented commands       │
//	├────────────────────────────────┤
//	│   Channel (staged reads)       │
//	├────────────────────────────────┤
//	│   TLS >= 1.2 (optional)        │
//	├────────────────────────────────┤
//	│   TCP, pipes or SSH channel    │
//	└────────────────────────────────┘
//
// # TLS
//
// Both ends present a certificate. Chains are never validated; the server
// only requires that a certificate is present and the client ignores the
// server's list of acceptable issuers. Peer identity is established by
// pinning the leaf certificate fingerprint (see package trust).
//
// Cipher suites (in preference order):
//   - ECDHE with AES-128-GCM
//   - ECDHE with ChaCha20-Poly1305
//   - ECDHE with AES-256-GCM
//
// Key exchange curves: X25519, then P-256.
//
// # Errors
//
// Identity, handshake and pinning failures are reported as *FatalError.
// Library code never exits the process; commands use IsFatal to decide.
//
// # Concurrency
//
// All operations block. A Session must be used by one goroutine at a time.
// Different sessions are independent.
package transport
