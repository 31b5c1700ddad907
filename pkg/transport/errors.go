package transport

import (
	"errors"
	"fmt"
)

// Transport errors.
var (
	ErrUnresolvable        = errors.New("peer name did not resolve")
	ErrAllCandidatesFailed = errors.New("no candidate address accepted the connection")
	ErrAlreadyClosed       = errors.New("session already closed")
	ErrNotUsable           = errors.New("session not usable")
	ErrBufferedPlaintext   = errors.New("unread plaintext buffered at TLS activation")
	ErrUnexpectedResponse  = errors.New("unexpected response")
	ErrUntrustedPeer       = errors.New("peer certificate not trusted")
)

// FatalError marks a failure after which the session cannot continue:
// unusable local identity, failed TLS handshake, or a pinning violation the
// caller asked to treat as fatal.
type FatalError struct {
	// Op names the step that failed, e.g. "load identity" or "handshake".
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err or any error it wraps is a *FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
