// Package credstore holds provisioned credentials as immutable snapshots.
//
// A Snapshot is never mutated after Build returns. Rotation builds a new
// snapshot and swaps it into the Store with a single atomic store, so a
// verification always sees one complete generation of records.
package credstore

import (
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/internal/service/kdf"
	"github.com/your-org/credguard/pkg/errors"
)

// maxSaltAttempts bounds salt regeneration on collision.
const maxSaltAttempts = 8

// Snapshot is a read-only credential table.
type Snapshot struct {
	records     map[domain.Identity]domain.CredentialRecord
	placeholder domain.CredentialRecord
	createdAt   time.Time
	source      string
}

// Lookup returns the record for id. For an absent identity it returns a
// zero-filled placeholder with the same salt and digest lengths as a real
// record, so callers can feed either into fixed-length operations.
func (s *Snapshot) Lookup(id domain.Identity) (domain.CredentialRecord, bool) {
	rec, ok := s.records[id]
	if !ok {
		rec = s.placeholder
	}
	return rec, ok
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// Identities returns the provisioned identities in ascending order.
func (s *Snapshot) Identities() []domain.Identity {
	ids := make([]domain.Identity, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// CreatedAt returns when the snapshot was built.
func (s *Snapshot) CreatedAt() time.Time {
	return s.createdAt
}

// Source describes where the records came from.
func (s *Snapshot) Source() string {
	return s.source
}

// Build derives a snapshot from seeds. Secret seeds get a fresh random salt,
// regenerated while it collides with a salt already in the table.
// Precomputed seeds are taken as-is but must match the deriver's salt and
// digest lengths and must not share a salt with another record.
func Build(d *kdf.Deriver, source string, seeds []Seed) (*Snapshot, error) {
	records := make(map[domain.Identity]domain.CredentialRecord, len(seeds))
	salts := make(map[string]struct{}, len(seeds))
	keyLen := d.Params().KeyLength
	saltLen := d.Params().SaltLength

	for i, seed := range seeds {
		if _, dup := records[seed.Identity]; dup {
			return nil, fmt.Errorf("%w: identity %d", errors.ErrDuplicateIdentity, seed.Identity)
		}

		var rec domain.CredentialRecord
		if seed.Precomputed() {
			salt, err := hex.DecodeString(seed.Salt)
			if err != nil {
				return nil, fmt.Errorf("%w: seed %d: invalid salt: %v", errors.ErrProvisioning, i, err)
			}
			digest, err := hex.DecodeString(seed.Digest)
			if err != nil {
				return nil, fmt.Errorf("%w: seed %d: invalid digest: %v", errors.ErrProvisioning, i, err)
			}
			if len(digest) != keyLen {
				return nil, fmt.Errorf("%w: seed %d: digest is %d bytes, want %d",
					errors.ErrProvisioning, i, len(digest), keyLen)
			}
			if len(salt) != saltLen {
				return nil, fmt.Errorf("%w: seed %d: salt is %d bytes, want %d",
					errors.ErrProvisioning, i, len(salt), saltLen)
			}
			if _, taken := salts[string(salt)]; taken {
				return nil, fmt.Errorf("%w: seed %d: salt reused", errors.ErrProvisioning, i)
			}
			rec = domain.CredentialRecord{Salt: salt, Digest: digest}
		} else {
			if seed.Secret == "" {
				return nil, fmt.Errorf("%w: seed %d: neither secret nor salt/digest set", errors.ErrProvisioning, i)
			}
			salt, err := uniqueSalt(d, salts)
			if err != nil {
				return nil, fmt.Errorf("%w: seed %d: %v", errors.ErrProvisioning, i, err)
			}
			rec = domain.CredentialRecord{Salt: salt, Digest: d.Derive([]byte(seed.Secret), salt)}
		}

		salts[string(rec.Salt)] = struct{}{}
		records[seed.Identity] = rec
	}

	return &Snapshot{
		records: records,
		placeholder: domain.CredentialRecord{
			Salt:   make([]byte, saltLen),
			Digest: make([]byte, keyLen),
		},
		createdAt: time.Now(),
		source:    source,
	}, nil
}

func uniqueSalt(d *kdf.Deriver, taken map[string]struct{}) ([]byte, error) {
	for range maxSaltAttempts {
		salt, err := d.RandomSalt()
		if err != nil {
			return nil, err
		}
		if _, dup := taken[string(salt)]; !dup {
			return salt, nil
		}
	}
	return nil, fmt.Errorf("no unique salt after %d attempts", maxSaltAttempts)
}
