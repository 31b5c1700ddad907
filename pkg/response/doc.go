// Package response defines the response vocabulary of the peersync control
// protocol.
//
// Every response line sent by a peer starts with one of a closed set of
// canonical phrases, optionally followed by free-form text (often an OS
// error string):
//
//	OK (cmd_finished).
//	Permission denied! /etc/shadow
//
// Decoding is a prefix match against the table in declaration order. Lines
// that match no phrase are classified as the generic OK class when they start
// with "OK (", and as the generic Error class otherwise. This lets a newer
// peer introduce success variants without breaking older peers.
package response
