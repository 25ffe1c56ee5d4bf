// Package security provides constant-time primitives for credential checks.
package security

import (
	"crypto/subtle"
)

// EqualDigest compares two digests and returns 1 when they are equal and 0
// otherwise. The running time depends only on len(stored): a computed digest
// of a different length is compared against itself so the full pass still
// happens, and the length mismatch is folded in without a branch.
func EqualDigest(computed, stored []byte) int {
	subject := computed
	sameLen := subtle.ConstantTimeEq(int32(len(computed)), int32(len(stored)))
	if len(computed) != len(stored) {
		subject = stored
	}
	return subtle.ConstantTimeCompare(subject, stored) & sameLen
}

// Select copies src into dst when v == 1 and leaves dst unchanged when
// v == 0. Both slices must have the same length.
func Select(v int, dst, src []byte) {
	subtle.ConstantTimeCopy(v, dst, src)
}

// Bit converts a bool to 0 or 1.
func Bit(b bool) int {
	var v int
	if b {
		v = 1
	}
	return v
}
