package verifier

import (
	"bytes"
	"time"

	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/internal/service/kdf"
)

// Legacy is the unhardened verifier. It exits early for unknown identities
// and compares digests with a variable-time comparison, so an unknown
// identity answers in roughly the cost of a map lookup. It exists as the
// baseline the timing probe is expected to break.
type Legacy struct {
	store   SnapshotSource
	deriver *kdf.Deriver
}

// NewLegacy creates a Legacy verifier.
func NewLegacy(store SnapshotSource, deriver *kdf.Deriver) *Legacy {
	return &Legacy{store: store, deriver: deriver}
}

// Mode returns ModeLegacy.
func (l *Legacy) Mode() string {
	return ModeLegacy
}

// Verify checks req.
func (l *Legacy) Verify(req domain.VerificationRequest) domain.VerificationResult {
	start := time.Now()

	if !req.WellFormed {
		return domain.Reject(time.Since(start))
	}

	rec, found := l.store.Snapshot().Lookup(req.Identity)
	if !found {
		return domain.Reject(time.Since(start))
	}

	attempt := l.deriver.Derive([]byte(req.Secret), rec.Salt)
	if bytes.Equal(attempt, rec.Digest) {
		return domain.Accept(time.Since(start))
	}
	return domain.Reject(time.Since(start))
}
