package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasherAlgorithms(t *testing.T) {
	sha := DefaultHasher().HashString("abc")
	assert.Len(t, sha, 64)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sha)

	b2 := NewHasher(BLAKE2b128).HashString("abc")
	assert.Len(t, b2, 32)
	assert.Equal(t, b2, NewHasher(BLAKE2b128).HashString("abc"))
	assert.NotEqual(t, b2, NewHasher(BLAKE2b128).HashString("abd"))
}

func TestHashJoinedIsOrdered(t *testing.T) {
	h := NewHasher(BLAKE2b128)
	assert.NotEqual(t, h.HashJoined("a", "b"), h.HashJoined("b", "a"))
	assert.Equal(t, h.HashString("a|b"), h.HashJoined("a", "b"))
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abcd", Short("abcdef", 4))
	assert.Equal(t, "ab", Short("ab", 4))
}
