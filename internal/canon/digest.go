package canon

import (
	"crypto/sha256"
	"encoding/hex"
)

// NumericPolicyID names the fixed-point rounding policy EncodeFractional
// implements. It is carried on every decision record so a future change
// to the rounding policy is a visible, versioned fact rather than a
// silent drift (spec's numeric policy is binding but explicitly
// parameterized behind this string).
const NumericPolicyID = "decimal8-half-up-v1"

// Digest returns "sha256:" followed by the lowercase hex SHA-256 of v's
// canonical encoding.
func Digest(v Value) (string, error) {
	b, err := Encode(v)
	if err != nil {
		return "", err
	}
	return DigestBytes(b), nil
}

// DigestBytes hashes already-canonical bytes directly, for callers that
// computed a subtree encoding themselves (e.g. partitioned record hashes).
func DigestBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}
