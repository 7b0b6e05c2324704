package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
	// BLAKE2b128 is a 128-bit BLAKE2b digest
	BLAKE2b128 HashAlgorithm = "blake2b-128"
)

// Hasher provides pluggable hashing
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{
		algorithm: algorithm,
	}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(SHA256)
}

// Hash computes a hex digest of the input data
func (h *Hasher) Hash(data []byte) string {
	switch h.algorithm {
	case BLAKE2b128:
		d, err := blake2b.New(16, nil)
		if err != nil {
			// Only fails for invalid sizes or oversized keys
			break
		}
		d.Write(data)
		return hex.EncodeToString(d.Sum(nil))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString computes a digest of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// HashJoined hashes fields joined by "|" in the given order.
// Order matters: callers that need order-independence sort first.
func (h *Hasher) HashJoined(fields ...string) string {
	return h.HashString(strings.Join(fields, "|"))
}

// Short truncates a hex digest to n characters
func Short(digest string, n int) string {
	if len(digest) <= n {
		return digest
	}
	return digest[:n]
}
