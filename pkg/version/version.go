// Package version provides the peersync protocol version and its encoding
// in discovery TXT records.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the protocol version implemented by this module.
const Current = "1.0"

// TXTKey is the TXT record key carrying the protocol version.
const TXTKey = "v"

// Version is a parsed "major.minor" protocol version.
type Version struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (Version, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok || strings.Contains(minor, ".") {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	maj, err := strconv.ParseUint(major, 10, 16)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	mnr, err := strconv.ParseUint(minor, 10, 16)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return Version{Major: uint16(maj), Minor: uint16(mnr)}, nil
}

// MustCurrent returns Current parsed.
func MustCurrent() Version {
	v, err := Parse(Current)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major
}

// TXTRecord returns the TXT entry advertising Current.
func TXTRecord() string {
	return TXTKey + "=" + Current
}

// FromTXT finds the protocol version in a TXT record. ok is false when the
// record carries no version entry; err is set when the entry is malformed.
func FromTXT(txt []string) (v Version, ok bool, err error) {
	for _, kv := range txt {
		key, value, found := strings.Cut(kv, "=")
		if !found || !strings.EqualFold(key, TXTKey) {
			continue
		}
		v, err = Parse(value)
		return v, true, err
	}
	return Version{}, false, nil
}

// CompatibleTXT reports whether a peer advertising txt speaks a protocol
// compatible with Current. A record without a version entry is accepted.
func CompatibleTXT(txt []string) bool {
	v, ok, err := FromTXT(txt)
	if !ok {
		return true
	}
	return err == nil && MustCurrent().Compatible(v)
}
