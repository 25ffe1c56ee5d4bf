// Package kdf derives credential digests with PBKDF2-HMAC-SHA256.
//
// The same Params value is used for provisioning and for every verification
// attempt, so every derivation costs the same regardless of caller.
package kdf

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultIterations = 100000
	DefaultKeyLength  = 32
	DefaultSaltLength = 16
)

// Params fixes the cost and output shape of a derivation.
type Params struct {
	Iterations int `mapstructure:"iterations" jsonschema:"description=PBKDF2 iteration count,default=100000,minimum=1"`
	KeyLength  int `mapstructure:"key_length" jsonschema:"description=Digest length in bytes,default=32,minimum=16"`
	SaltLength int `mapstructure:"salt_length" jsonschema:"description=Salt length in bytes,default=16,minimum=8"`
}

// DefaultParams returns the production derivation parameters.
func DefaultParams() Params {
	return Params{
		Iterations: DefaultIterations,
		KeyLength:  DefaultKeyLength,
		SaltLength: DefaultSaltLength,
	}
}

// Validate checks that the parameters describe a usable derivation.
func (p Params) Validate() error {
	if p.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", p.Iterations)
	}
	if p.KeyLength < 16 {
		return fmt.Errorf("key length must be at least 16 bytes, got %d", p.KeyLength)
	}
	if p.SaltLength < 8 {
		return fmt.Errorf("salt length must be at least 8 bytes, got %d", p.SaltLength)
	}
	return nil
}

// Deriver runs key derivations with fixed parameters.
type Deriver struct {
	params Params
	rand   io.Reader
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithRandom replaces the salt source. Used by tests.
func WithRandom(r io.Reader) Option {
	return func(d *Deriver) {
		d.rand = r
	}
}

// New creates a Deriver.
func New(params Params, opts ...Option) (*Deriver, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kdf params: %w", err)
	}

	d := &Deriver{
		params: params,
		rand:   rand.Reader,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Params returns the derivation parameters.
func (d *Deriver) Params() Params {
	return d.params
}

// Derive returns the digest of secret under salt.
func (d *Deriver) Derive(secret, salt []byte) []byte {
	return pbkdf2.Key(secret, salt, d.params.Iterations, d.params.KeyLength, sha256.New)
}

// RandomSalt returns a fresh salt of the configured length.
func (d *Deriver) RandomSalt() ([]byte, error) {
	salt := make([]byte, d.params.SaltLength)
	if _, err := io.ReadFull(d.rand, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
