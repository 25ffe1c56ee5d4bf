package domain

import "time"

// Identity identifies one provisioned credential. It is the key of the
// credential store and carries no other meaning.
type Identity int64

// CredentialRecord is the stored form of one credential.
type CredentialRecord struct {
	// Salt is a per-record random value, unique across the store
	Salt []byte `json:"salt" yaml:"salt"`

	// Digest is the key derivation of the provisioning secret under Salt
	Digest []byte `json:"digest" yaml:"digest"`
}

// VerificationRequest is one credential check. It is never persisted.
type VerificationRequest struct {
	Identity Identity
	Secret   string

	// WellFormed is false when the request arrived malformed. Such requests
	// are still run through the full verification path and then rejected.
	WellFormed bool
}

// Outcome is the two-valued result of a verification.
type Outcome uint8

const (
	// Rejected covers every failure cause: unknown identity, wrong secret
	// and malformed input are indistinguishable.
	Rejected Outcome = iota
	// Accepted means the identity exists and the secret matched.
	Accepted
)

// String returns the outcome name.
func (o Outcome) String() string {
	if o == Accepted {
		return "accepted"
	}
	return "rejected"
}

// IsAccepted reports whether the outcome is Accepted.
func (o Outcome) IsAccepted() bool {
	return o == Accepted
}

// VerificationResult carries the outcome together with the time the
// verifier spent. Elapsed is for metrics only and never leaves the process.
type VerificationResult struct {
	Outcome Outcome       `json:"outcome"`
	Elapsed time.Duration `json:"-"`
}

// Accept creates an accepted result.
func Accept(elapsed time.Duration) VerificationResult {
	return VerificationResult{Outcome: Accepted, Elapsed: elapsed}
}

// Reject creates a rejected result.
func Reject(elapsed time.Duration) VerificationResult {
	return VerificationResult{Outcome: Rejected, Elapsed: elapsed}
}
