// Package tunnel carries peersync sessions over SSH.
//
// DialSSH logs in to the peer, runs the configured remote command (by
// default "peersync -stdio") and adopts the command's standard output and
// input as the session's input and output endpoints. The remote side adopts
// its own standard input and output the same way, so either end can then
// activate TLS on top of the tunnel.
package tunnel
