// Package persistence stores peersync runtime state as JSON files.
//
// The trust state file holds the certificate fingerprints pinned for each
// peer and backs the file-based trust store in package trust.
package persistence
