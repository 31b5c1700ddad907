package trust

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/peersync/peersync-go/pkg/transport"
)

// Pinning errors, wrapped in *transport.FatalError when the caller asked
// for fatal handling.
var (
	ErrNoPeerCertificate   = errors.New("peer presented no certificate")
	ErrFingerprintMismatch = errors.New("peer certificate differs from pinned certificate")
)

// Fingerprint renders a DER certificate as upper-case hex, two digits per
// byte, in order.
func Fingerprint(der []byte) string {
	return strings.ToUpper(hex.EncodeToString(der))
}

// Verifier checks peers against a Store, pinning on first contact.
type Verifier struct {
	store  Store
	logger *slog.Logger
}

// NewVerifier creates a Verifier backed by store. A nil logger uses
// slog.Default().
func NewVerifier(store Store, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{store: store, logger: logger}
}

// CheckPeer decides whether the peer behind src is trusted under the name
// peer. Plaintext sessions are trusted. On first contact the leaf
// certificate is pinned and trusted; afterwards only the pinned certificate
// is. A missing certificate or a mismatch returns false, and a
// *transport.FatalError as well when fatalOnMismatch is set. Store failures
// are returned as ordinary errors.
func (v *Verifier) CheckPeer(ctx context.Context, src transport.PeerSource, peer string, fatalOnMismatch bool) (bool, error) {
	if !src.TLSActive() {
		return true, nil
	}

	certs := src.PeerCertificates()
	if len(certs) == 0 {
		if fatalOnMismatch {
			return false, &transport.FatalError{Op: "check peer " + peer, Err: ErrNoPeerCertificate}
		}
		v.logger.Debug("peer presented no certificate", "peer", peer)
		return false, nil
	}

	fp := Fingerprint(certs[0].Raw)

	pinned, found, err := v.store.Get(ctx, peer)
	if err != nil {
		return false, fmt.Errorf("look up pin for %s: %w", peer, err)
	}

	if !found {
		if err := v.store.Put(ctx, peer, fp); err != nil {
			return false, fmt.Errorf("pin %s: %w", peer, err)
		}
		v.logger.Info("pinned peer certificate", "peer", peer)
		return true, nil
	}

	if pinned == fp {
		return true, nil
	}

	if fatalOnMismatch {
		return false, &transport.FatalError{Op: "check peer " + peer, Err: ErrFingerprintMismatch}
	}
	v.logger.Warn("peer certificate does not match pinned certificate", "peer", peer)
	return false, nil
}

var _ transport.PeerVerifier = (*Verifier)(nil)
