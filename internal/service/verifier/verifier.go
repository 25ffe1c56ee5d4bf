// Package verifier checks credentials against the current snapshot.
package verifier

import (
	"fmt"

	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/internal/service/credstore"
	"github.com/your-org/credguard/internal/service/kdf"
)

// Verification modes.
const (
	ModeHardened = "hardened"
	ModeLegacy   = "legacy"
)

// DefaultDummySecret is derived under the decoy salt on every request.
const DefaultDummySecret = "00000000"

// Verifier decides whether a credential is valid.
type Verifier interface {
	Verify(req domain.VerificationRequest) domain.VerificationResult
	Mode() string
}

// SnapshotSource provides the credential snapshot to verify against.
type SnapshotSource interface {
	Snapshot() *credstore.Snapshot
}

// Config holds verifier settings.
type Config struct {
	Mode        string `mapstructure:"mode" jsonschema:"description=Verification mode,enum=hardened,enum=legacy,default=hardened"`
	DummySecret string `mapstructure:"dummy_secret" jsonschema:"description=Secret derived under the per-request decoy salt,default=00000000"`
}

// New creates the verifier for cfg.Mode.
func New(cfg Config, store SnapshotSource, deriver *kdf.Deriver) (Verifier, error) {
	switch cfg.Mode {
	case ModeHardened, "":
		return NewHardened(store, deriver, cfg.DummySecret), nil
	case ModeLegacy:
		return NewLegacy(store, deriver), nil
	default:
		return nil, fmt.Errorf("unknown verifier mode %q", cfg.Mode)
	}
}
