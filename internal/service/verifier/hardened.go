package verifier

import (
	"time"

	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/internal/service/kdf"
	"github.com/your-org/credguard/pkg/security"
)

// Hardened runs the same sequence of operations for every request:
//
//  1. derive the dummy secret under a fresh random decoy salt
//  2. look the identity up (absent identities yield a placeholder record)
//  3. select the real or decoy salt and digest with constant-time copies
//  4. derive the candidate secret under the selected salt
//  5. compare digests in constant time
//
// The accept decision is a bitwise AND evaluated after all of that work.
// Known and unknown identities therefore both cost two derivations, and
// malformed requests take the same path with an empty secret.
type Hardened struct {
	store       SnapshotSource
	deriver     *kdf.Deriver
	dummySecret []byte
}

// NewHardened creates a Hardened verifier.
func NewHardened(store SnapshotSource, deriver *kdf.Deriver, dummySecret string) *Hardened {
	if dummySecret == "" {
		dummySecret = DefaultDummySecret
	}
	return &Hardened{
		store:       store,
		deriver:     deriver,
		dummySecret: []byte(dummySecret),
	}
}

// Mode returns ModeHardened.
func (h *Hardened) Mode() string {
	return ModeHardened
}

// Verify checks req. It never returns early.
func (h *Hardened) Verify(req domain.VerificationRequest) domain.VerificationResult {
	start := time.Now()
	params := h.deriver.Params()

	// A failed salt draw still runs the full path on a zero salt and
	// forces rejection.
	decoySalt, err := h.deriver.RandomSalt()
	saltOK := security.Bit(err == nil)
	if decoySalt == nil {
		decoySalt = make([]byte, params.SaltLength)
	}
	decoyDigest := h.deriver.Derive(h.dummySecret, decoySalt)

	rec, found := h.store.Snapshot().Lookup(req.Identity)
	foundBit := security.Bit(found)

	salt := make([]byte, params.SaltLength)
	digest := make([]byte, params.KeyLength)
	copy(salt, decoySalt)
	copy(digest, decoyDigest)
	security.Select(foundBit, salt, rec.Salt)
	security.Select(foundBit, digest, rec.Digest)

	attempt := h.deriver.Derive([]byte(req.Secret), salt)
	match := security.EqualDigest(attempt, digest)

	accepted := match & foundBit & security.Bit(req.WellFormed) & saltOK

	elapsed := time.Since(start)
	if accepted == 1 {
		return domain.Accept(elapsed)
	}
	return domain.Reject(elapsed)
}
